package toolbox

// manifest is the fixed set of administrative actions the assistant may
// invoke. Discovery results are validated against it: tools the channel
// advertises but the manifest omits are ignored, manifest entries the
// channel does not serve are logged and skipped. The assistant never
// calls an action outside this list.
var manifest = []string{
	"list_healthcare_users",
	"get_healthcare_user",
	"create_healthcare_user",
	"list_smart_apps",
	"list_fhir_servers",
	"list_roles",
}

// ManifestNames returns the manifest tool names in declaration order.
func ManifestNames() []string {
	names := make([]string, len(manifest))
	copy(names, manifest)
	return names
}
