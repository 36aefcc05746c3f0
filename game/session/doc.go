// Package session implements the lobby/game state machine and the session
// directory.
//
// A Session moves through two phases. In the lobby phase connections join,
// get a role (the first join while the controller slot is free becomes the
// controller, everyone else a subject), and toggle readiness; when the
// roster is non-empty and unanimously ready the session starts. Starting
// places the controller at (0,0) without a spawn cell and hands each
// subject the next unused spawn cell in row-major order, which makes
// placement deterministic for a given join order. The transition is
// irreversible for the session instance.
//
// Identity:
//
// Connections are keyed two ways. The connection id is transient and
// changes on every reconnect; the persistent id is a durable client-held
// token. Everything that must survive socket churn (the disconnect
// archive, the controller binding) is keyed by persistent id, never by
// connection id. Disconnecting mid-game archives the participant; a later
// Reconnect with the same persistent id restores the exact position on a
// brand-new connection id. At most one active participant carries a given
// persistent id at any time.
//
// Spawn cells claimed by a subject are never released, even on disconnect:
// the claim is what guarantees the archived position stays free for the
// reconnect. The cost is that permanently departed subjects consume slots
// for the session's lifetime; SpawnPressure exposes that to operators.
//
// Concurrency:
//
// Every mutating Session method takes the session's mutex, and all return
// values are snapshots, so broadcast fan-out happens entirely outside the
// lock. The Directory guards its token map with a separate lock scoped to
// insert/lookup/delete, and each session carries an inactivity timer that
// is re-armed on every access; a fired timer reaps the session only if its
// active roster is empty.
package session
