package importer

import (
	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/vrm"
)

func (im *importer) meta0(m *vrm.Metadata) avatar.Meta {
	meta := avatar.Meta{
		Name:                m.Title,
		Version:             m.Version,
		ContactInformation:  m.ContactInformation,
		Thumbnail:           -1,
		AvatarPermission:    vrm.AvatarPermission0To1(m.AllowedUserName),
		AllowViolent:        vrm.IsUsageAllowed(m.ViolentUssageName),
		AllowSexual:         vrm.IsUsageAllowed(m.SexualUssageName),
		CommercialUsage:     vrm.CommercialPersonalNonProfit,
		CreditNotation:      vrm.CreditRequired,
		Modification:        vrm.Modification0(m.LicenseName),
		AllowRedistribution: m.LicenseName != "" && m.LicenseName != "Redistribution_Prohibited",
		LicenseName:         m.LicenseName,
		OtherLicenseURL:     m.OtherLicenseURL,
		OtherPermissionURL:  m.OtherPermissionURL,
	}
	if m.Author != "" {
		meta.Authors = []string{m.Author}
	}
	if m.Reference != "" {
		meta.References = []string{m.Reference}
	}
	if vrm.IsUsageAllowed(m.CommercialUssageName) {
		meta.CommercialUsage = vrm.CommercialPersonalProfit
	}
	if m.LicenseName == "CC0" {
		meta.CreditNotation = vrm.CreditUnnecessary
	}
	if m.Texture != nil && *m.Texture >= 0 && *m.Texture < len(im.av.Textures) {
		meta.Thumbnail = im.av.Textures[*m.Texture].Image
	}
	return meta
}

func (im *importer) meta1(m *vrm.Meta1) avatar.Meta {
	meta := avatar.Meta{
		Name:                 m.Name,
		Version:              m.Version,
		Authors:              append([]string(nil), m.Authors...),
		CopyrightInformation: m.CopyrightInformation,
		ContactInformation:   m.ContactInformation,
		References:           append([]string(nil), m.References...),
		ThirdPartyLicenses:   m.ThirdPartyLicenses,
		Thumbnail:            -1,
		AvatarPermission:     m.AvatarPermission,
		CommercialUsage:      m.CommercialUsage,
		CreditNotation:       m.CreditNotation,
		Modification:         m.Modification,
		AllowViolent:         m.AllowExcessivelyViolentUsage,
		AllowSexual:          m.AllowExcessivelySexualUsage,
		AllowPolitical:       m.AllowPoliticalOrReligiousUsage,
		AllowAntisocial:      m.AllowAntisocialOrHateUsage,
		AllowRedistribution:  m.AllowRedistribution,
		LicenseURL:           m.LicenseURL,
		OtherLicenseURL:      m.OtherLicenseURL,
	}
	if m.ThumbnailImage != nil && *m.ThumbnailImage >= 0 && *m.ThumbnailImage < len(im.av.Images) {
		meta.Thumbnail = *m.ThumbnailImage
	}
	return meta
}
