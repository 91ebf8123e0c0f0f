package knowledge

// Corpus returns the platform documentation chunks the assistant answers
// from. Loaded once at startup; the returned slice and its entries are
// treated as immutable by the index.
func Corpus() []DocumentChunk {
	return []DocumentChunk{
		{
			ID:       "dashboard-overview",
			Title:    "Dashboard Overview",
			Category: "admin-ui",
			Source:   "docs/admin-ui/dashboard.md",
			Content: "The Dashboard is the central hub providing comprehensive overview of " +
				"healthcare platform status, metrics, and quick access to all management " +
				"functions. It displays real-time system health indicators including active " +
				"components (OAuth Server, FHIR Proxy, WebSocket), performance metrics, " +
				"alerts, and last update timestamps. The dashboard provides quick actions " +
				"for adding users, registering apps, adding FHIR servers, configuring " +
				"scopes, managing launch contexts, and monitoring OAuth flows.",
		},
		{
			ID:       "user-management-overview",
			Title:    "User Management",
			Category: "admin-ui",
			Source:   "docs/admin-ui/user-management.md",
			Content: "User Management provides comprehensive tools for managing healthcare users " +
				"including practitioners, administrative staff, system users, and external " +
				"users. It supports user registration with personal details, professional " +
				"info, and account configuration. Key features include FHIR Person " +
				"associations across multiple servers, role-based access control with " +
				"administrator and user roles, user activity tracking, and lifecycle " +
				"management including activation, password management, and termination.",
		},
		{
			ID:       "smart-apps-management",
			Title:    "SMART Apps Management",
			Category: "admin-ui",
			Source:   "docs/admin-ui/smart-apps.md",
			Content: "SMART Apps section manages SMART on FHIR applications including " +
				"patient-facing apps, provider apps, EHR integrated apps, research apps, " +
				"agent apps, and backend services. It supports EHR launch, standalone " +
				"launch, backend services, and agent launch types. Application registration " +
				"includes basic information, technical configuration, and scope configuration " +
				"with FHIR resource scopes for patient, user, system, and agent contexts.",
		},
		{
			ID:       "smart-app-launch-framework",
			Title:    "SMART App Launch Framework",
			Category: "smart-on-fhir",
			Source:   "docs/smart-on-fhir/smart-app-launch.md",
			Content: "SMART App Launch Framework enables secure integration of healthcare " +
				"applications with EHR systems using OAuth 2.0. It supports different launch " +
				"types: EHR launch from within EHR systems, standalone launch for " +
				"independent applications, and backend services for server-to-server " +
				"communication. The framework provides clinical context through launch " +
				"parameters including patient, encounter, user, and organization context.",
		},
		{
			ID:       "oauth-flows",
			Title:    "OAuth 2.0 Flows",
			Category: "smart-on-fhir",
			Source:   "docs/smart-on-fhir/oauth-flows.md",
			Content: "OAuth 2.0 flows in SMART on FHIR include Authorization Code flow for " +
				"interactive applications, Client Credentials flow for backend services, " +
				"and Agent flow for autonomous systems. Each flow has specific security " +
				"requirements including PKCE for public clients, client authentication for " +
				"confidential clients, and scope validation for resource access control.",
		},
		{
			ID:       "scopes-permissions",
			Title:    "Scopes and Permissions",
			Category: "smart-on-fhir",
			Source:   "docs/smart-on-fhir/scopes-permissions.md",
			Content: "SMART scopes define access permissions for FHIR resources using context " +
				"prefixes: patient/ for patient-specific data, user/ for user-accessible " +
				"resources, system/ for system-wide access, and agent/ for autonomous agent " +
				"access. Scopes include resource type and operation (read, write, cruds). " +
				"Examples: patient/Patient.read, user/Observation.read, system/Patient.cruds, " +
				"agent/Device.read.",
		},
		{
			ID:       "launch-contexts",
			Title:    "Launch Contexts",
			Category: "smart-on-fhir",
			Source:   "docs/smart-on-fhir/launch-contexts.md",
			Content: "Launch contexts provide clinical workflow context to SMART applications. " +
				"Context types include patient context (specific patient, patient list, " +
				"encounter, episode), provider context (practitioner, care team, " +
				"organization, location), and workflow context (order entry, results review, " +
				"documentation, research). Contexts are injected via launch parameters during " +
				"application initialization.",
		},
		{
			ID:       "agent-scopes",
			Title:    "Agent Scopes for Autonomous Systems",
			Category: "smart-on-fhir",
			Source:   "docs/smart-on-fhir/agent-scopes.md",
			Content: "Agent scopes (agent/) are designed for autonomous systems including AI " +
				"assistants, robots, and automated decision tools. Unlike system/ scopes " +
				"which are deterministic and scheduled, agent/ scopes support " +
				"non-deterministic, self-initiated actions. Agent identity is resolved to " +
				"Device resources at runtime. Examples: agent/Patient.read for AI patient " +
				"analysis, agent/ClinicalImpression.write for AI-generated assessments.",
		},
		{
			ID:       "identity-providers",
			Title:    "Identity Providers Management",
			Category: "admin-ui",
			Source:   "docs/admin-ui/identity-providers.md",
			Content: "Identity Providers (IdP) section manages authentication systems for " +
				"healthcare organizations. Supports SAML 2.0 for enterprise SSO, OpenID " +
				"Connect (OIDC) for modern OAuth-based authentication, LDAP for directory " +
				"services, and local authentication. Features include SSO endpoint " +
				"configuration, metadata import/export, user attribute mapping for FHIR " +
				"Person associations, role-based access control, group mappings, multi-factor " +
				"authentication (MFA) requirements, and session management. Enables seamless " +
				"integration with existing organizational authentication infrastructure.",
		},
		{
			ID:       "platform-navigation",
			Title:    "Platform Navigation and Features",
			Category: "admin-ui",
			Source:   "docs/admin-ui/navigation.md",
			Content: "The platform provides comprehensive navigation with sections for Dashboard " +
				"(system overview), SMART Apps (application management), Users (healthcare " +
				"user management), FHIR Servers (server configuration), Identity Providers " +
				"(IdP management), Scope Management (permission templates), Launch Context " +
				"(context configuration), and OAuth Monitoring (real-time analytics). Each " +
				"section provides specialized tools for healthcare platform administration.",
		},
		{
			ID:       "getting-started-guide",
			Title:    "Getting Started with SMART on FHIR Platform",
			Category: "tutorials",
			Source:   "docs/tutorials/getting-started.md",
			Content: "Getting started guide covers platform setup and configuration. Key steps: " +
				"1) Review Dashboard for system health, 2) Configure FHIR servers with base " +
				"URL and authentication, 3) Set up identity providers (SAML, OIDC), 4) Create " +
				"user accounts and associate with FHIR Person resources, 5) Register SMART " +
				"apps with scopes and launch contexts, 6) Test OAuth flows and FHIR access. " +
				"Includes security best practices, monitoring setup, and go-live checklist. " +
				"Use AI Assistant for help with specific tasks.",
		},
		{
			ID:       "fhir-servers-management",
			Title:    "FHIR Servers Management",
			Category: "admin-ui",
			Source:   "docs/admin-ui/fhir-servers.md",
			Content: "FHIR Servers section manages FHIR server connections, health monitoring, " +
				"and configuration. Supports EHR systems (Epic, Cerner), cloud FHIR services, " +
				"open source servers, and test environments. Features include server " +
				"registration with base URL and FHIR version, authentication methods (API " +
				"key, OAuth 2.0, client certificates), health monitoring with real-time " +
				"checks, performance metrics tracking, and security settings. Provides bulk " +
				"data operations, SMART launch context support, and comprehensive " +
				"troubleshooting tools.",
		},
		{
			ID:       "scope-management-detailed",
			Title:    "Scope Management and Permissions",
			Category: "admin-ui",
			Source:   "docs/admin-ui/scope-management.md",
			Content: "Scope Management provides granular FHIR resource permissions using " +
				"context/resource.operations pattern. Context prefixes include patient/ " +
				"(patient-specific), user/ (user-accessible), system/ (backend system), and " +
				"agent/ (autonomous AI). Common resources include Patient, Observation, " +
				"MedicationRequest, DiagnosticReport, Condition, Procedure. Operations are " +
				"read, write, cruds, search. Features role-based templates for clinical roles " +
				"(physicians, nurses) and administrative roles, custom template creation, " +
				"organizational scope management, and compliance reporting.",
		},
		{
			ID:       "common-administrative-tasks",
			Title:    "Common Administrative Tasks",
			Category: "tutorials",
			Source:   "docs/tutorials/common-tasks.md",
			Content: "Common tasks include: 1) Registering SMART apps with appropriate scopes and " +
				"launch contexts, 2) Adding healthcare users and associating with FHIR Person " +
				"resources, 3) Configuring FHIR servers with health monitoring, 4) Setting up " +
				"scope templates for different user roles, 5) Creating launch contexts for " +
				"clinical workflows, 6) Monitoring OAuth flows for troubleshooting, 7) " +
				"Managing identity providers for authentication.",
		},
		{
			ID:       "troubleshooting-guide",
			Title:    "Troubleshooting Common Issues",
			Category: "tutorials",
			Source:   "docs/tutorials/troubleshooting.md",
			Content: "Common issues and solutions: 1) OAuth authorization failures - check " +
				"redirect URIs, scopes, and client configuration, 2) FHIR server connectivity " +
				"- verify endpoints, certificates, and network access, 3) User authentication " +
				"problems - check IdP configuration and user status, 4) Application launch " +
				"failures - verify launch contexts and required parameters, 5) Scope access " +
				"denied - review user permissions and application scopes, 6) Performance " +
				"issues - check system health and resource utilization.",
		},
	}
}
