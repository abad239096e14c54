package layout

import "slices"

// vocabulary lists the field keys an editor palette offers per context.
// The renderer never consults it.
var vocabulary = map[Context][]string{
	LicenseFamily: {
		"name", "productCode", "category", "vendor", "description",
		"assignmentModel", "variants", "totalUnits", "imageUrl",
	},
	HardwareFamily: {
		"name", "productCode", "category", "manufacturer", "description",
		"assignmentModel", "totalUnits", "imageUrl",
	},
	LicenseInstance: {
		"assetId", "title", "status", "variantType", "licenseKey", "email",
		"assignedUsers", "activeUsers", "purchaseDate", "expiryDate",
		"currencyTool", "cost", "site", "notes", "assignmentHistory",
	},
	HardwareInstance: {
		"assetId", "title", "status", "serialNumber", "macAddress", "condition",
		"assignedUser", "activeUsers", "purchaseDate", "expiryDate",
		"currencyTool", "cost", "site", "notes", "assignmentHistory", "maintenanceLog",
	},
	UserProfile: {
		"fullName", "email", "role", "department", "sites", "jobTitle",
		"phone", "manager", "userHistory",
	},
}

// Vocabulary returns the palette of field keys for c.
func Vocabulary(c Context) []string {
	return slices.Clone(vocabulary[c])
}

// Unplaced returns the vocabulary keys of c that l does not place yet.
func Unplaced(c Context, l Layout) []string {
	placed := l.FieldKeys()
	var out []string
	for _, k := range vocabulary[c] {
		if !slices.Contains(placed, k) {
			out = append(out, k)
		}
	}
	return out
}
