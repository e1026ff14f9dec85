// Package bot provides the domain types shared by every botsync package.
//
// This package contains type definitions and their serialization only. All
// other internal packages import bot; bot imports nothing internal.
//
// Key design constraints:
//   - Flows are identified by name, never by file path
//   - RemoteFlow keeps every remote-owned field it was decoded with, so an
//     update sends back what the service gave us plus the local overlay
//   - AiRuleSet entries are opaque JSON and are never inspected
//   - Digests use canonical JSON with domain separation and are informational
package bot
