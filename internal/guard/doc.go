// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guard implements the submission rate-limit and ban state machine.
//
// # States
//
//   - Active: submissions are accepted unless they arrive faster than
//     MinInterval after the previous accepted one. Each such rapid repeat
//     is a violation and earns a "slow down" warning.
//   - Banned: entered when the violation count reaches BanThreshold. Every
//     attempt before the ban ends is rejected. At or after the ban end the
//     guard resets to Active with zero violations.
//
// A timer armed on ban entry lifts the ban even if the user never tries
// again. The ban end and violation count are persisted, so a restart does
// not shorten a ban.
//
// # Usage
//
//	g, err := guard.New(store,
//	    guard.WithNoticeHandler(func(n guard.Notice) { show(n) }),
//	)
//	defer g.Close()
//
//	if d := g.RecordAttempt(time.Now()); !d.Accepted {
//	    show(d.Notice)
//	    return
//	}
package guard
