package rbac

// Permission names.
const (
	PermViewTickets        = "view:tickets"
	PermCreateTickets      = "create:tickets"
	PermUpdateTickets      = "update:tickets"
	PermAssignTickets      = "assign:tickets"
	PermManageTickets      = "manage:tickets"
	PermViewKB             = "view:kb"
	PermManageKBArticles   = "manage:kb_articles"
	PermManageKBCategories = "manage:kb_categories"
	PermAdminKB            = "admin:kb"
	PermViewTeams          = "view:teams"
	PermManageTeams        = "manage:teams"
	PermViewCustomers      = "view:customers"
	PermComposeOutreach    = "compose:outreach"
	PermViewReports        = "view:reports"
	PermManageUsers        = "manage:users"
	PermManageRoles        = "manage:roles"
	PermViewAuditLog       = "view:audit_log"
	PermManageSettings     = "manage:settings"
)

// Catalogue lists every permission with its description.
func Catalogue() []Permission {
	return []Permission{
		{Name: PermViewTickets, Description: "View tickets"},
		{Name: PermCreateTickets, Description: "Create tickets"},
		{Name: PermUpdateTickets, Description: "Update tickets"},
		{Name: PermAssignTickets, Description: "Assign tickets to agents"},
		{Name: PermManageTickets, Description: "Manage every ticket regardless of ownership"},
		{Name: PermViewKB, Description: "Read the knowledge base"},
		{Name: PermManageKBArticles, Description: "Create and edit knowledge-base articles"},
		{Name: PermManageKBCategories, Description: "Manage knowledge-base categories"},
		{Name: PermAdminKB, Description: "Edit any knowledge-base article"},
		{Name: PermViewTeams, Description: "View teams"},
		{Name: PermManageTeams, Description: "Manage teams and memberships"},
		{Name: PermViewCustomers, Description: "View customer profiles"},
		{Name: PermComposeOutreach, Description: "Compose outreach messages"},
		{Name: PermViewReports, Description: "View reports"},
		{Name: PermManageUsers, Description: "Manage users"},
		{Name: PermManageRoles, Description: "Assign and remove roles"},
		{Name: PermViewAuditLog, Description: "Read the role audit log"},
		{Name: PermManageSettings, Description: "Manage system settings"},
	}
}

// DefaultRolePermissions is the seed mapping. Each role carries everything
// granted to the role below it.
func DefaultRolePermissions() map[Role][]string {
	customer := []string{PermViewTickets, PermCreateTickets, PermViewKB}
	agent := append(clone(customer),
		PermUpdateTickets, PermManageKBArticles, PermViewTeams, PermViewCustomers, PermComposeOutreach)
	lead := append(clone(agent),
		PermAssignTickets, PermManageKBCategories, PermViewReports)
	admin := append(clone(lead),
		PermManageTickets, PermAdminKB, PermManageTeams, PermManageUsers, PermManageRoles, PermViewAuditLog)
	super := append(clone(admin), PermManageSettings)

	return map[Role][]string{
		RoleCustomer:   customer,
		RoleAgent:      agent,
		RoleTeamLead:   lead,
		RoleAdmin:      admin,
		RoleSuperAdmin: super,
	}
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
