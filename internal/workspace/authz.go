package workspace

import (
	"strings"

	"reportdeck/api/internal/rbac"
)

// editableProjects computes the set of project ids the identity may
// write, from the persisted baseline: admins edit everything, leads edit
// projects where their member row carries the lead flag, everyone else
// edits nothing.
func editableProjects(baseline *Snapshot, identity Identity) map[string]bool {
	editable := make(map[string]bool)
	switch identity.Role {
	case rbac.RoleAdmin:
		for _, p := range baseline.Projects {
			editable[p.ID] = true
		}
	case rbac.RoleLead:
		if identity.EmployeeID == "" {
			return editable
		}
		for _, p := range baseline.Projects {
			for _, m := range p.Members {
				if m.EmployeeID == identity.EmployeeID && m.IsProjectLead {
					editable[p.ID] = true
					break
				}
			}
		}
	}
	return editable
}

// applyLeadPromotionPolicy widens the editable set for a lead-role
// caller based on the incoming payload, mutating the payload in place.
//
// For every payload project the caller cannot yet edit: if the caller's
// own member entry carries lead-sounding role text it is promoted to
// IsProjectLead, and if the caller has no member entry at all a lead
// entry is synthesized. Either way the project joins the editable set.
//
// This is a known privilege-escalation surface: a lead-role caller can
// grant themselves lead status on any project just by submitting a
// self-entry with matching role text. The behavior is kept for
// compatibility with existing clients and is deliberately isolated here
// so deployments can switch it off (Engine.AllowLeadSelfPromotion)
// without touching the reconciler.
func applyLeadPromotionPolicy(desired *Snapshot, identity Identity, editable map[string]bool) {
	if identity.Role != rbac.RoleLead || identity.EmployeeID == "" {
		return
	}
	for i := range desired.Projects {
		p := &desired.Projects[i]
		if editable[p.ID] {
			continue
		}
		found := false
		for j := range p.Members {
			m := &p.Members[j]
			if m.EmployeeID != identity.EmployeeID {
				continue
			}
			found = true
			if m.IsProjectLead || leadRoleText(m.Role) {
				m.IsProjectLead = true
				editable[p.ID] = true
			}
			break
		}
		if !found {
			p.Members = append(p.Members, Member{
				EmployeeID:    identity.EmployeeID,
				Role:          "Projektleder",
				Group:         GroupCore,
				IsProjectLead: true,
				TimeEntries:   []TimeEntry{},
			})
			editable[p.ID] = true
		}
	}
}

// leadRoleText matches the Danish "leder" and its English equivalent.
func leadRoleText(role string) bool {
	lower := strings.ToLower(role)
	return strings.Contains(lower, "leder") || strings.Contains(lower, "lead")
}
