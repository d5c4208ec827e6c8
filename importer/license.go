package importer

import (
	"regexp"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
)

var vroidHubURL = regexp.MustCompile(`^https?://hub\.vroid\.com/(?:[a-z]{2}/)?characters/\d+/models/\d+`)

// IsVRoidHubURL reports whether url is a VRoid Hub model page.
func IsVRoidHubURL(url string) bool {
	return vroidHubURL.MatchString(url)
}

// CheckLicense rejects documents whose license does not allow modified
// copies: VRM 0.x no-derivatives licenses, VRM 1.0 prohibited
// modification, and VRoid Hub models, whose conditions live on the hub.
func CheckLicense(doc *vrm.Document) error {
	const op = "importer.CheckLicense"
	switch doc.Version() {
	case vrm.Version0:
		meta := doc.VRM().Meta
		if vrm.IsNoDerivatives(meta.LicenseName) {
			return vrmerr.New(vrmerr.LicenseRestricted, op, "license %s does not allow derivatives", meta.LicenseName)
		}
		for _, url := range []string{meta.OtherPermissionURL, meta.OtherLicenseURL} {
			if IsVRoidHubURL(url) {
				return vrmerr.New(vrmerr.LicenseRestricted, op, "VRoid Hub model %s: modification must be confirmed", url)
			}
		}
	case vrm.Version1:
		meta := doc.VRMC().Meta
		if meta.Modification == vrm.ModificationProhibited {
			return vrmerr.New(vrmerr.LicenseRestricted, op, "modification is prohibited")
		}
		for _, url := range []string{meta.OtherLicenseURL, meta.LicenseURL} {
			if IsVRoidHubURL(url) {
				return vrmerr.New(vrmerr.LicenseRestricted, op, "VRoid Hub model %s: modification must be confirmed", url)
			}
		}
	}
	return nil
}
