// Copyright 2026 The Matryoshka Authors
// SPDX-License-Identifier: Apache-2.0

// Package globmatch implements the two-wildcard pattern language used to
// query the VFS namespace: '*' matches any run of characters (including
// the path separator '/') and '?' matches exactly one byte
// (including '/'). A pattern is anchored at both ends; the entire
// candidate string must be consumed. There are no character classes and
// no escaping — every other rune matches itself literally.
//
// This deliberately does not delegate to path.Match: that function's
// '*' stops at '/', which is the opposite of what the VFS namespace
// needs (see lib/vfs's Find, which must match "folder1/file1" against
// "*/file1").
package globmatch

// Match reports whether s matches pattern under the two-wildcard glob
// rules: '*' matches any sequence of bytes including '/', '?' matches
// any single byte including '/', and every other byte matches
// literally. The match is anchored — the whole of s must be consumed.
//
// Matching is byte-oriented rather than rune-oriented: VFS paths are
// opaque, unnormalized strings, and treating each byte as a match unit
// keeps '?' and literal matching well defined for any byte sequence,
// not just valid UTF-8.
func Match(pattern, s string) bool {
	return match(pattern, s)
}

// match implements the classic two-wildcard backtracking glob
// algorithm: advance both pattern and string in lockstep on literal
// and '?' matches; on '*' remember the backtrack point (the position
// just after the star, and the string position at that time) and
// greedily consume the rest of the string, backing off one character
// at a time when a later literal fails to match.
func match(pattern, s string) bool {
	var (
		pIdx, sIdx   = 0, 0
		starIdx      = -1
		starMatchIdx = -1
	)

	for sIdx < len(s) {
		switch {
		case pIdx < len(pattern) && pattern[pIdx] == '*':
			starIdx = pIdx
			starMatchIdx = sIdx
			pIdx++
		case pIdx < len(pattern) && (pattern[pIdx] == '?' || pattern[pIdx] == s[sIdx]):
			pIdx++
			sIdx++
		case starIdx != -1:
			// Backtrack: let the last '*' absorb one more character.
			pIdx = starIdx + 1
			starMatchIdx++
			sIdx = starMatchIdx
		default:
			return false
		}
	}

	// Consume any trailing '*' runs; anything else left in pattern
	// means the match failed.
	for pIdx < len(pattern) && pattern[pIdx] == '*' {
		pIdx++
	}

	return pIdx == len(pattern)
}
