package permissions

import "github.com/charlesng35/agentdesk/internal/models"

// All is the wildcard capability granted to owners.
const All = "*"

// Capabilities understood by the workspace.
const (
	ConversationsView   = "conversations.view"
	ConversationsReply  = "conversations.reply"
	ConversationsAssign = "conversations.assign"
	ContactsView        = "contacts.view"
	ContactsManage      = "contacts.manage"
	QuickRepliesUse     = "quick_replies.use"
	QuickRepliesManage  = "quick_replies.manage"
	ReportsView         = "reports.view"
	ReportsExport       = "reports.export"
	AgentsView          = "agents.view"
	AgentsInvite        = "agents.invite"
	AgentsManage        = "agents.manage"
	RolesManage         = "roles.manage"
	InboxesManage       = "inboxes.manage"
	AutomationsManage   = "automations.manage"
	SettingsManage      = "settings.manage"
)

var viewerDefaults = []string{
	ConversationsView,
	ContactsView,
	ReportsView,
}

var agentDefaults = []string{
	ConversationsView,
	ConversationsReply,
	ConversationsAssign,
	ContactsView,
	ContactsManage,
	QuickRepliesUse,
	ReportsView,
}

var administratorDefaults = []string{
	ConversationsView,
	ConversationsReply,
	ConversationsAssign,
	ContactsView,
	ContactsManage,
	QuickRepliesUse,
	QuickRepliesManage,
	ReportsView,
	ReportsExport,
	AgentsView,
	AgentsInvite,
	AgentsManage,
	RolesManage,
	InboxesManage,
	AutomationsManage,
	SettingsManage,
}

var ownerDefaults = []string{All}

// DefaultsFor returns a copy of the fixed capability list for a built-in role.
// Unknown roles yield an empty, non-nil list so checks fail closed.
func DefaultsFor(role models.AgentRole) []string {
	var src []string
	switch role {
	case models.AgentRoleOwner:
		src = ownerDefaults
	case models.AgentRoleAdministrator:
		src = administratorDefaults
	case models.AgentRoleAgent:
		src = agentDefaults
	case models.AgentRoleViewer:
		src = viewerDefaults
	default:
		return []string{}
	}
	return append([]string(nil), src...)
}

// core is the built-in capability catalogue.
var core = mustCatalogue(
	Permission{ID: ConversationsView, Module: "conversations", Description: "View conversations"},
	Permission{ID: ConversationsReply, Module: "conversations", DependsOn: []string{ConversationsView}, Description: "Reply to conversations"},
	Permission{ID: ConversationsAssign, Module: "conversations", DependsOn: []string{ConversationsView}, Description: "Assign conversations to agents"},
	Permission{ID: ContactsView, Module: "contacts", Description: "View contacts"},
	Permission{ID: ContactsManage, Module: "contacts", DependsOn: []string{ContactsView}, Description: "Create and edit contacts"},
	Permission{ID: QuickRepliesUse, Module: "quick_replies", Description: "Use quick replies"},
	Permission{ID: QuickRepliesManage, Module: "quick_replies", DependsOn: []string{QuickRepliesUse}, Description: "Manage quick replies"},
	Permission{ID: ReportsView, Module: "reports", Description: "View reports"},
	Permission{ID: ReportsExport, Module: "reports", DependsOn: []string{ReportsView}, Description: "Export reports"},
	Permission{ID: AgentsView, Module: "agents", Description: "View agents"},
	Permission{ID: AgentsInvite, Module: "agents", DependsOn: []string{AgentsView}, Description: "Invite agents"},
	Permission{ID: AgentsManage, Module: "agents", DependsOn: []string{AgentsView}, Description: "Manage agents, roles and sessions"},
	Permission{ID: RolesManage, Module: "agents", DependsOn: []string{AgentsView}, Description: "Manage custom roles"},
	Permission{ID: InboxesManage, Module: "inboxes", Description: "Manage inboxes"},
	Permission{ID: AutomationsManage, Module: "automations", Description: "Manage automations"},
	Permission{ID: SettingsManage, Module: "settings", Description: "Manage account settings"},
)
