package vrm

import "strings"

// VRM 0.x meta usage values.
const (
	UsageAllow    = "Allow"
	UsageDisallow = "Disallow"

	UserOnlyAuthor               = "OnlyAuthor"
	UserExplicitlyLicensedPerson = "ExplicitlyLicensedPerson"
	UserEveryone                 = "Everyone"

	LicenseOther = "Other"
)

// VRM 0.x license names.
var Licenses0 = []string{
	"Redistribution_Prohibited",
	"CC0",
	"CC_BY",
	"CC_BY_NC",
	"CC_BY_SA",
	"CC_BY_NC_SA",
	"CC_BY_ND",
	"CC_BY_NC_ND",
	LicenseOther,
}

// DefaultLicenseURL is the VRM 1.0 license document.
const DefaultLicenseURL = "https://vrm.dev/licenses/1.0/"

var avatarPermission0To1 = map[string]string{
	UserOnlyAuthor:               AvatarPermissionOnlyAuthor,
	UserExplicitlyLicensedPerson: AvatarPermissionSeparatelyLicensed,
	UserEveryone:                 AvatarPermissionEveryone,
}

// AvatarPermission0To1 converts allowedUserName to avatarPermission.
func AvatarPermission0To1(user string) string {
	if p, ok := avatarPermission0To1[user]; ok {
		return p
	}
	return AvatarPermissionOnlyAuthor
}

func AvatarPermission1To0(p string) string {
	for k, v := range avatarPermission0To1 {
		if v == p {
			return k
		}
	}
	return UserOnlyAuthor
}

func Usage0(allow bool) string {
	if allow {
		return UsageAllow
	}
	return UsageDisallow
}

func IsUsageAllowed(usage string) bool {
	return usage == UsageAllow
}

// IsNoDerivatives reports whether a VRM 0.x license name forbids
// modified versions.
func IsNoDerivatives(license string) bool {
	if license == "Redistribution_Prohibited" {
		return false
	}
	for _, part := range strings.FieldsFunc(strings.ToUpper(license), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}) {
		if part == "ND" {
			return true
		}
	}
	return strings.Contains(strings.ToLower(license), "noderivatives")
}

// Modification0 derives a VRM 1.0 modification value from a VRM 0.x
// license name.
func Modification0(license string) string {
	switch {
	case IsNoDerivatives(license), license == "Redistribution_Prohibited":
		return ModificationProhibited
	case license == "" || license == LicenseOther:
		return ""
	}
	return ModificationAllowRedistribution
}

var firstPersonFlag0To1 = map[string]string{
	"Auto":            "auto",
	"Both":            "both",
	"ThirdPersonOnly": "thirdPersonOnly",
	"FirstPersonOnly": "firstPersonOnly",
}

// FirstPersonFlag0To1 converts a VRM 0.x mesh annotation flag. Unknown
// flags become auto.
func FirstPersonFlag0To1(flag string) string {
	if f, ok := firstPersonFlag0To1[flag]; ok {
		return f
	}
	return "auto"
}

func FirstPersonFlag1To0(flag string) string {
	for k, v := range firstPersonFlag0To1 {
		if v == flag {
			return k
		}
	}
	return "Auto"
}

// LookAtType0To1 converts lookAtTypeName.
func LookAtType0To1(t string) string {
	if t == "BlendShape" {
		return "expression"
	}
	return "bone"
}

func LookAtType1To0(t string) string {
	if t == "expression" {
		return "BlendShape"
	}
	return "Bone"
}
