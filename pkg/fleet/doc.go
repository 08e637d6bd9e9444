// Package fleet defines the data model shared across the flotilla engine:
// nodes, cluster templates, and the filter grammar used to select nodes.
//
// A Node is one addressable remote compute target. Nodes backed by a live
// cloud instance carry an instance ID and a read-only snapshot of instance
// state taken at inventory refresh time. Nodes synthesized for template
// entries with no matching instance are "absent": they have no ID and reject
// remote operations.
//
// Filters follow shell glob semantics (`*` and `?`), anchored and
// case-sensitive. The special key "tags" matches against tag pairs using a
// `keyglob:valglob` value, split on the rightmost colon.
package fleet
