// SPDX-FileCopyrightText: 2026 The opendtn Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent connects applications to the node.
//
// The main interface is the ApplicationAgent, which requires two channels for incoming and outgoing Messages and a
// list of endpoints. Delivered payloads are passed to an ApplicationAgent as PayloadMessages, bundles submitted by an
// application leave it as BundleMessages. The WebSocketAgent implements this for WebSocket clients.
//
// The RestAgent offers a RESTful interface to submit bundles and to query stored payloads.
package agent
