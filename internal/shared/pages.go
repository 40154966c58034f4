package shared

import "strings"

// AdminUsername is the reserved built-in administrator account.
const AdminUsername = "admin"

// Built-in protected page identifiers.
const (
	PageMenu            = "/Menu"
	PageUsers           = "/Users"
	PagePermissions     = "/Permissions"
	PageFiscalYears     = "/FiscalYears"
	PageActivities      = "/Activities"
	PageMenuNodes       = "/MenuNodes"
	PageDynamicEntities = "/DynamicEntities"
	PageDynamicPages    = "/DynamicPages"
)

// CorePages lists the page identifiers seeded with the catalog.
func CorePages() []string {
	return []string{
		PageMenu,
		PageUsers,
		PagePermissions,
		PageFiscalYears,
		PageActivities,
		PageMenuNodes,
		PageDynamicEntities,
		PageDynamicPages,
	}
}

// NormalizePageURL trims a page identifier and ensures a leading slash.
func NormalizePageURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return url
}
