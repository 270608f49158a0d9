// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

package globmatch

import "testing"

func TestMatchLiteral(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"folder/file", "folder/file", true},
		{"folder/file", "folder/other", false},
		{"folder/file", "folder/file2", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.s); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestMatchQuestionMark(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"folder?/file1", "folder1/file1", true},
		{"folder?/file1", "folder2/file1", true},
		{"folder?/file1", "folder12/file1", false},
		{"?", "/", true}, // '?' crosses the path separator.
		{"??", "ab", true},
		{"?", "", false},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.s); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestMatchStar(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "", true},
		{"*", "anything/at/all", true},
		{"*/file1", "folder1/file1", true},
		{"*/file1", "folder1/folder2/file1", true},
		{"folder2/*", "folder2/file1", true},
		{"folder2/*", "folder1/file1", false},
		{"folder/example_*.txt", "folder/example_1.txt", true},
		{"folder/example_*.txt", "folder/example_.txt", true},
		{"a*b*c", "axxbxxc", true},
		{"a*b*c", "abc", true},
		{"a*b*c", "ac", false},
		{"a**b", "axxb", true},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.s); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}

func TestMatchIsCaseSensitive(t *testing.T) {
	if Match("File", "file") {
		t.Error("Match should be case-sensitive")
	}
}

func TestMatchAnchored(t *testing.T) {
	if Match("file", "prefix/file") {
		t.Error("pattern without wildcards must not match a longer string")
	}
	if Match("prefix/file", "file") {
		t.Error("pattern without wildcards must not match a shorter string")
	}
}

func TestMatchScenarioS6(t *testing.T) {
	paths := []string{
		"folder1/file1",
		"folder1/file2",
		"folder2/file1",
	}
	cases := []struct {
		pattern string
		want    int
	}{
		{"*", 3},
		{"folder?/file1", 2},
		{"*/file1", 2},
		{"folder2/*", 1},
	}
	for _, c := range cases {
		count := 0
		for _, p := range paths {
			if Match(c.pattern, p) {
				count++
			}
		}
		if count != c.want {
			t.Errorf("pattern %q matched %d paths, want %d", c.pattern, count, c.want)
		}
	}
}
