// Package domain contains the core business entities and value objects of
// the knowledge tracker: nodes and their prerequisite edges, per-user
// scheduling state, review history and study sessions. It is independent
// of any storage or delivery mechanism.
package domain
