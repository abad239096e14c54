// Package seed loads demo data through the regular services, so every seeded
// record carries audit fields, history and activity like any other write.
package seed

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/assetdesk/internal/domain"
	"github.com/matthewbaird/assetdesk/internal/inventory"
	"github.com/matthewbaird/assetdesk/internal/lifecycle"
	"github.com/matthewbaird/assetdesk/internal/settings"
)

// Actor stamps every seeded record.
var Actor = domain.Actor{Name: "seed", Source: "import"}

// Report counts what a run created.
type Report struct {
	Skipped    bool `json:"skipped"`
	References int  `json:"references"`
	Users      int  `json:"users"`
	Families   int  `json:"families"`
	Assets     int  `json:"assets"`
	Requests   int  `json:"requests"`
}

// Services are the write paths the seed goes through.
type Services struct {
	Settings  *settings.Service
	Inventory *inventory.Service
	Lifecycle *lifecycle.Engine
}

var references = map[domain.ReferenceKind][]string{
	domain.ReferenceVendors:     {"Microsoft", "Adobe", "Lenovo", "Dell", "Atlassian"},
	domain.ReferenceSites:       {"London", "Manchester", "Remote"},
	domain.ReferenceDepartments: {"Engineering", "Finance", "Operations", "People"},
}

var users = []domain.User{
	{FullName: "Desk Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Department: "Operations", Sites: []string{"London"}},
	{FullName: "Ada Lovelace", Email: "ada@example.com", Role: domain.RoleUser, Department: "Engineering", Sites: []string{"London"}, JobTitle: "Engineer"},
	{FullName: "Grace Hopper", Email: "grace@example.com", Role: domain.RoleUser, Department: "Engineering", Sites: []string{"Remote"}, JobTitle: "Staff Engineer"},
	{FullName: "Mary Jackson", Email: "mary@example.com", Role: domain.RoleUser, Department: "Finance", Sites: []string{"Manchester"}},
}

type familySeed struct {
	family domain.AssetFamily
	stock  int
}

func families() []familySeed {
	return []familySeed{
		{
			family: domain.AssetFamily{
				AssetType: domain.AssetTypeLicense, Name: "Microsoft 365", ProductCode: "M365",
				Category: "Productivity", Vendor: "Microsoft", AssignmentModel: domain.AssignmentSingle,
				Variants: []domain.Variant{
					{Name: "Standard", LicenseType: "E3", Cost: decimal.RequireFromString("12.50")},
					{Name: "Premium", LicenseType: "E5", Cost: decimal.RequireFromString("22.00")},
				},
			},
			stock: 3,
		},
		{
			family: domain.AssetFamily{
				AssetType: domain.AssetTypeLicense, Name: "Jira Software", ProductCode: "JIRA",
				Category: "Development", Vendor: "Atlassian", AssignmentModel: domain.AssignmentMultiple,
				Variants: []domain.Variant{
					{Name: "Cloud", LicenseType: "Subscription", Cost: decimal.RequireFromString("7.75")},
				},
			},
			stock: 1,
		},
		{
			family: domain.AssetFamily{
				AssetType: domain.AssetTypeHardware, Name: "ThinkPad T14", ProductCode: "T14",
				Category: "Laptop", Manufacturer: "Lenovo", AssignmentModel: domain.AssignmentSingle,
			},
			stock: 2,
		},
		{
			family: domain.AssetFamily{
				AssetType: domain.AssetTypeHardware, Name: "Dell U2723QE", ProductCode: "U27",
				Category: "Monitor", Manufacturer: "Dell", AssignmentModel: domain.AssignmentSingle,
			},
		},
	}
}

// Run creates the demo data set. It does nothing when any family exists.
func Run(ctx context.Context, s Services, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var rep Report

	existing, err := s.Inventory.ListFamilies(ctx)
	if err != nil {
		return rep, errors.Wrap(err, "checking families")
	}
	if len(existing) > 0 {
		logger.Info("families already seeded, skipping", "count", len(existing))
		rep.Skipped = true
		return rep, nil
	}

	// ── Reference lists ──────────────────────────────────────────────
	for _, kind := range []domain.ReferenceKind{domain.ReferenceVendors, domain.ReferenceSites, domain.ReferenceDepartments} {
		for _, name := range references[kind] {
			if _, err := s.Settings.AddReference(ctx, kind, name, Actor); err != nil {
				return rep, errors.Wrapf(err, "adding %s %s", kind, name)
			}
			rep.References++
		}
	}

	// ── Users ────────────────────────────────────────────────────────
	byEmail := make(map[string]domain.User, len(users))
	for _, u := range users {
		created, err := s.Inventory.CreateUser(ctx, u, Actor)
		if err != nil {
			return rep, errors.Wrapf(err, "creating user %s", u.Email)
		}
		byEmail[created.Email] = created
		rep.Users++
	}

	// ── Families and stock ───────────────────────────────────────────
	byCode := make(map[string]domain.AssetFamily)
	for _, fs := range families() {
		f, err := s.Inventory.CreateFamily(ctx, fs.family, Actor)
		if err != nil {
			return rep, errors.Wrapf(err, "creating family %s", fs.family.Name)
		}
		byCode[f.ProductCode] = f
		rep.Families++
		if fs.stock == 0 {
			continue
		}
		created, err := s.Inventory.BulkCreate(ctx, f.ID, inventory.BulkSpec{Count: fs.stock, Site: "London"}, Actor)
		if err != nil {
			return rep, errors.Wrapf(err, "stocking %s", f.Name)
		}
		rep.Assets += len(created)
	}

	// ── Requests ─────────────────────────────────────────────────────
	// Ada's laptop request is fulfilled from stock; Grace's monitor
	// request is left Pending for an admin to pick up.
	admin := byEmail["admin@example.com"]
	laptop, err := s.Lifecycle.CreateRequest(ctx, domain.Request{
		Type: domain.RequestHardware, FamilyID: byCode["T14"].ID,
		RequestedBy: byEmail["ada@example.com"].ID, Justification: "Replacement for a failed laptop",
	}, Actor)
	if err != nil {
		return rep, errors.Wrap(err, "creating laptop request")
	}
	rep.Requests++
	task, err := s.Lifecycle.BeginApproval(ctx, laptop.ID)
	if err != nil {
		return rep, errors.Wrap(err, "approving laptop request")
	}
	task.AssignedTo = admin.ID
	if _, err := s.Lifecycle.ConfirmTask(ctx, laptop.ID, task, Actor); err != nil {
		return rep, errors.Wrap(err, "confirming laptop task")
	}

	if _, err := s.Lifecycle.CreateRequest(ctx, domain.Request{
		Type: domain.RequestHardware, FamilyID: byCode["U27"].ID,
		RequestedBy: byEmail["grace@example.com"].ID, Justification: "Second screen",
	}, Actor); err != nil {
		return rep, errors.Wrap(err, "creating monitor request")
	}
	rep.Requests++

	logger.Info("seed complete",
		"references", rep.References,
		"users", rep.Users,
		"families", rep.Families,
		"assets", rep.Assets,
		"requests", rep.Requests)
	return rep, nil
}
