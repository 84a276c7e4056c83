package workspace

import "reportdeck/api/internal/rbac"

// projectSnapshot produces the role-filtered view of a snapshot without
// touching storage. Admins and leads see everything; rank-and-file
// members see only projects they belong to and the employees staffed on
// those projects. Every visible project carries its edit/log-time flags.
func projectSnapshot(s *Snapshot, identity Identity) *Snapshot {
	out := s.Clone()

	if identity.Role == rbac.RoleMember {
		visible := out.Projects[:0]
		visibleEmployees := make(map[string]bool)
		if identity.EmployeeID != "" {
			visibleEmployees[identity.EmployeeID] = true
		}
		for _, p := range out.Projects {
			if !isAssigned(p, identity.EmployeeID) {
				continue
			}
			for _, m := range p.Members {
				visibleEmployees[m.EmployeeID] = true
			}
			visible = append(visible, p)
		}
		out.Projects = visible

		employees := out.Employees[:0]
		for _, e := range out.Employees {
			if visibleEmployees[e.ID] {
				employees = append(employees, e)
			}
		}
		out.Employees = employees
	}

	for i := range out.Projects {
		p := &out.Projects[i]
		p.CanEdit = canEditProject(*p, identity)
		p.CanLogTime = p.CanEdit || isAssigned(*p, identity.EmployeeID)
	}
	return out
}

func canEditProject(p Project, identity Identity) bool {
	switch identity.Role {
	case rbac.RoleAdmin:
		return true
	case rbac.RoleLead:
		for _, m := range p.Members {
			if m.EmployeeID == identity.EmployeeID && m.IsProjectLead {
				return true
			}
		}
	}
	return false
}

func isAssigned(p Project, employeeID string) bool {
	if employeeID == "" {
		return false
	}
	for _, m := range p.Members {
		if m.EmployeeID == employeeID {
			return true
		}
	}
	return false
}
