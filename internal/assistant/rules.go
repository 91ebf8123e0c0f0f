package assistant

import (
	"fmt"
	"strings"

	"github.com/medkitlab/sage/internal/knowledge"
)

// ruleResponse is a deterministic answer produced without the model.
type ruleResponse struct {
	answer     string
	confidence float64
}

// ruleBasedResponse routes a message to a canned topic answer by keyword
// matching. It always produces an answer; the general help message is the
// final fallback. Used when every generation path has failed or no tools
// and no provider are available.
func ruleBasedResponse(message string, docs []knowledge.DocumentChunk) ruleResponse {
	lower := strings.ToLower(message)

	confidence := 0.6
	var primary *knowledge.DocumentChunk
	if len(docs) > 0 {
		primary = &docs[0]
		confidence = 0.7
	}

	// Navigation queries route by destination.
	if containsAny(lower, "navigate", "go to", "section", "where") {
		switch {
		case containsAny(lower, "user", "healthcare", "practitioner"):
			return ruleResponse{userManagementHelp, confidence}
		case containsAny(lower, "app", "smart", "application"):
			return ruleResponse{smartAppsHelp, confidence}
		case containsAny(lower, "server", "fhir"):
			return ruleResponse{fhirServersHelp, confidence}
		}
	}

	switch {
	case containsAny(lower, "idp", "identity", "authentication", "provider", "saml", "oidc"):
		return ruleResponse{identityProviderHelp, confidence}
	case containsAny(lower, "scope", "permission", "access"):
		return ruleResponse{scopeManagementHelp, confidence}
	case containsAny(lower, "launch", "context"):
		return ruleResponse{launchContextHelp, confidence}
	case containsAny(lower, "oauth", "monitor", "flow"):
		return ruleResponse{oauthMonitoringHelp, confidence}
	case containsAny(lower, "dashboard", "overview", "status"):
		return ruleResponse{dashboardHelp, confidence}
	}

	if primary != nil {
		if answer := contextualResponse(primary); answer != "" {
			return ruleResponse{answer, confidence}
		}
	}

	return ruleResponse{generalHelp, 0.6}
}

// contextualResponse builds an answer from the best-matching document.
// Returns "" for categories with no canned framing.
func contextualResponse(doc *knowledge.DocumentChunk) string {
	preview := doc.Content
	if len(preview) > 300 {
		preview = preview[:300]
	}

	switch doc.Category {
	case "admin-ui":
		return fmt.Sprintf(
			"Based on the %s documentation:\n\n%s...\n\nWould you like specific guidance on any particular aspect?",
			doc.Title, preview)
	case "smart-on-fhir":
		return fmt.Sprintf(
			"According to the %s documentation:\n\n%s...\n\nNeed help with specific OAuth flows or configuration?",
			doc.Title, preview)
	}
	return ""
}

const generalHelp = `I'm your SMART on FHIR platform assistant! I can help you with:

**Platform Administration:**
- User management and FHIR associations
- SMART app registration and configuration
- FHIR server setup and monitoring
- OAuth flows and security management

**Specific Topics:**
- Scope configuration and permissions
- Launch context setup for clinical workflows
- Identity provider integration
- System monitoring and troubleshooting

Ask me about any specific aspect you'd like to explore!`

const userManagementHelp = `To manage healthcare users, go to the **Users** section in the navigation. There you can:

- Add new healthcare users with professional details
- Associate users with FHIR Person resources across multiple servers
- Configure role-based permissions and access control
- Monitor user activity, sessions, and login patterns
- Manage user lifecycle from activation to termination

*Tip: Each user can have FHIR Person associations on multiple servers for cross-system identity linking.*`

const smartAppsHelp = `To manage SMART applications, go to the **SMART Apps** section. Here you can:

- Register new SMART on FHIR applications with detailed configuration
- Configure OAuth scopes for granular resource access control
- Set up launch contexts for different clinical workflows
- Monitor application usage, performance, and error rates
- Manage application lifecycle, versions, and security settings

*Key: Proper scope configuration is crucial for security and functionality.*`

const fhirServersHelp = `To manage FHIR servers, go to the **FHIR Servers** section. You can:

- Add and configure FHIR server endpoints with authentication
- Monitor server health, performance, and response times
- Test server connectivity and validate FHIR compliance
- Configure security settings and access controls
- View usage analytics and troubleshoot issues

*Multi-server support allows unified management across your healthcare ecosystem.*`

const identityProviderHelp = `To manage Identity Providers, go to the **Identity Providers** section. Here you can:

**Supported Protocols:**
- **SAML 2.0** - Enterprise single sign-on integration
- **OpenID Connect (OIDC)** - Modern OAuth-based authentication
- **LDAP** - Directory service integration
- **Local Authentication** - Platform-native user accounts

**Configuration Options:**
- SSO endpoint configuration and metadata import
- User attribute mapping for FHIR Person associations
- Role-based access control and group mappings
- Multi-factor authentication (MFA) requirements

*Identity providers enable seamless integration with existing healthcare organization authentication systems.*`

const scopeManagementHelp = `SMART scopes control access to FHIR resources. Go to **Scope Management** to configure:

**Scope Contexts:**
- **patient/** - Patient-specific data access (e.g., patient/Patient.read)
- **user/** - User-accessible resources (e.g., user/Observation.read)
- **system/** - System-wide access (e.g., system/Patient.cruds)
- **agent/** - Autonomous agent access (e.g., agent/Device.read)

**Scope Templates:**
- Role-based templates for different user types
- Specialty-specific scope combinations
- Custom scope sets for organizational needs

*Scopes use CRUD operations (Create, Read, Update, Delete, Search) with 'cruds' for full access.*`

const launchContextHelp = `Launch contexts provide clinical workflow context to applications. Go to **Launch Context** to:

**Clinical Contexts:**
- Patient contexts (patient selection, encounters, episodes)
- Provider contexts (practitioner, care team, location)
- Workflow contexts (order entry, results review, documentation)

**Configuration:**
- Pre-configured workflow templates
- Custom context builders for specific needs
- Dynamic context resolution at runtime

*Launch contexts are injected as parameters during application initialization to provide immediate clinical relevance.*`

const oauthMonitoringHelp = `For OAuth monitoring and troubleshooting, go to the **OAuth Monitoring** section:

**Real-time Monitoring:**
- Live authorization flow tracking via WebSocket
- Success/failure rate analytics with trending
- Performance metrics and bottleneck identification
- Token usage patterns and refresh analytics

**Debugging Tools:**
- Flow-by-flow error analysis
- Security violation detection
- Integration testing capabilities

*The dashboard provides WebSocket-based real-time updates for immediate insight into OAuth activities.*`

const dashboardHelp = `The **Dashboard** provides comprehensive platform oversight:

**System Health:**
- OAuth Server, FHIR Proxy, WebSocket status monitoring
- Performance metrics with response time tracking
- Alert management and maintenance notifications

**Quick Actions:**
- One-click access to common administrative tasks
- Fast navigation to all platform sections

**Analytics:**
- User, application, and server statistics
- OAuth flow analytics with trend visualization
- Real-time updates every 30 seconds`
