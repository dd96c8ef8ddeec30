package websocket

// Resolve computes the recipient set for an event against the current
// registry state. It is a pure read: the result is a set, so a connection
// matching more than one rule still appears exactly once.
//
// new_for_review goes to every reviewer-role connection; any reviewer may
// pick up any pending item. validated goes to the owner's topic subscribers
// plus every reviewer-role connection, so reviewers also observe outcomes.
func Resolve(ev Event, reg *Registry) []*Client {
	seen := make(map[*Client]struct{})

	switch ev.Type {
	case EventNewForReview:
		for _, c := range reg.Snapshot() {
			if c.Role == RoleReviewer {
				seen[c] = struct{}{}
			}
		}
	case EventValidated:
		for _, c := range reg.SubscribersOf(OwnerTopic(ev.OwnerID)) {
			seen[c] = struct{}{}
		}
		for _, c := range reg.Snapshot() {
			if c.Role == RoleReviewer {
				seen[c] = struct{}{}
			}
		}
	}

	out := make([]*Client, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}
