// Copyright ©2024 The tabix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tabix

import "errors"

// ErrMalformedIndex is returned when a .tbi payload fails to parse: bad
// magic, a truncated section, a count that overflows the payload, a
// duplicate bin id within a reference, or a format field with bits set
// outside the documented set. It is fatal at open; no partial Index is
// returned.
var ErrMalformedIndex = errors.New("tabix: malformed index")

// ErrMalformedBlock is returned for a BGZF decoding failure encountered
// while servicing a query: a bad member header, a missing BC subfield,
// or a deflate error. It is fatal for the query in progress; the Handle
// remains usable for a new query provided the caller seeks cleanly.
var ErrMalformedBlock = errors.New("tabix: malformed block")

// ErrLineParseFailure is returned when a data line lacks the columns the
// index header says it has, or has a non-numeric coordinate. It
// indicates data-file/index drift and is fatal for the query in
// progress.
var ErrLineParseFailure = errors.New("tabix: line parse failure")

// Unknown reference names and empty query regions are not errors: Fetch
// returns an empty sequence for both, per spec.
