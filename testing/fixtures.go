package testing

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/amirphl/Yata-no-Kagami/models"
	"github.com/amirphl/Yata-no-Kagami/repository"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

// Sheet headers as they appear in the studio exports. RulesHeaderNoAliases is a rule sheet
// written before the alias columns existed.
var (
	AttendanceHeader     = []string{"Customer Name", "Event Starts At", "Membership Name", "Offering Type Name", "Instructors", "Status"}
	PaymentsHeader       = []string{"Date", "Customer Name", "Memo", "Amount", "Invoice #"}
	RulesHeader          = []string{"rule_name", "package_name", "session_type", "package_price", "unit_price", "coach_percentage", "bgm_percentage", "management_percentage", "mfc_percentage", "attendance_alias", "payment_memo_alias"}
	RulesHeaderNoAliases = []string{"rule_name", "package_name", "session_type", "package_price", "unit_price", "coach_percentage", "bgm_percentage", "management_percentage", "mfc_percentage"}
	DiscountsHeader      = []string{"name", "discount_code", "match_type", "applicable_percentage", "coach_payment_type", "active"}
)

// DefaultSheetNames are the table names fixtures are stored under
var DefaultSheetNames = repository.SheetNames{
	Attendance: utils.DefaultAttendanceSheet,
	Payments:   utils.DefaultPaymentsSheet,
	Rules:      utils.DefaultRulesSheet,
	Discounts:  utils.DefaultDiscountsSheet,
	Master:     utils.DefaultMasterSheet,
}

// TestFixtures builds reconciliation inputs and stores them in a MemoryTableStore
type TestFixtures struct {
	Store *MemoryTableStore
	Names repository.SheetNames

	attendance []models.SheetRow
	payments   []models.SheetRow
	rules      []models.SheetRow
	discounts  []models.SheetRow
}

// NewTestFixtures creates fixtures over an empty in-memory store
func NewTestFixtures() *TestFixtures {
	return &TestFixtures{Store: NewMemoryTableStore(), Names: DefaultSheetNames}
}

// Attendance describes one attendance row
type Attendance struct {
	Customer    string
	StartsAt    string
	Membership  string
	Offering    string
	Instructors string
	Status      string
}

// Payment describes one payment row
type Payment struct {
	Date     string
	Customer string
	Memo     string
	Amount   float64
	Invoice  string
}

// Rule describes one pricing rule row. A zero UnitPrice leaves the cell blank.
type Rule struct {
	Name         string
	Package      string
	SessionType  string
	PackagePrice float64
	UnitPrice    float64
	Coach        float64
	BGM          float64
	Management   float64
	MFC          float64
	Alias        string
	MemoAlias    string
}

// Discount describes one discount row
type Discount struct {
	Name       string
	Code       string
	MatchType  string
	Percentage float64
	PayType    string
	Inactive   bool
}

func (f *TestFixtures) AddAttendance(a Attendance) *TestFixtures {
	if a.Status == "" {
		a.Status = "Checked In"
	}
	f.attendance = append(f.attendance, models.SheetRow{
		"Customer Name":      a.Customer,
		"Event Starts At":    a.StartsAt,
		"Membership Name":    a.Membership,
		"Offering Type Name": a.Offering,
		"Instructors":        a.Instructors,
		"Status":             a.Status,
	})
	return f
}

func (f *TestFixtures) AddPayment(p Payment) *TestFixtures {
	f.payments = append(f.payments, models.SheetRow{
		"Date":          p.Date,
		"Customer Name": p.Customer,
		"Memo":          p.Memo,
		"Amount":        repository.FormatNumber(p.Amount),
		"Invoice #":     p.Invoice,
	})
	return f
}

func (f *TestFixtures) AddRule(r Rule) *TestFixtures {
	unit := ""
	if r.UnitPrice != 0 {
		unit = repository.FormatNumber(r.UnitPrice)
	}
	f.rules = append(f.rules, models.SheetRow{
		"rule_name":             r.Name,
		"package_name":          r.Package,
		"session_type":          r.SessionType,
		"package_price":         repository.FormatNumber(r.PackagePrice),
		"unit_price":            unit,
		"coach_percentage":      repository.FormatNumber(r.Coach),
		"bgm_percentage":        repository.FormatNumber(r.BGM),
		"management_percentage": repository.FormatNumber(r.Management),
		"mfc_percentage":        repository.FormatNumber(r.MFC),
		"attendance_alias":      r.Alias,
		"payment_memo_alias":    r.MemoAlias,
	})
	return f
}

func (f *TestFixtures) AddDiscount(d Discount) *TestFixtures {
	active := "yes"
	if d.Inactive {
		active = "no"
	}
	f.discounts = append(f.discounts, models.SheetRow{
		"name":                  d.Name,
		"discount_code":         d.Code,
		"match_type":            d.MatchType,
		"applicable_percentage": repository.FormatNumber(d.Percentage),
		"coach_payment_type":    d.PayType,
		"active":                active,
	})
	return f
}

// Save writes the accumulated rows into the store and returns it.
// withAliases false stores the rule sheet without its alias columns.
func (f *TestFixtures) Save(withAliases bool) *MemoryTableStore {
	f.Store.Put(f.Names.Attendance, AttendanceHeader, f.attendance)
	f.Store.Put(f.Names.Payments, PaymentsHeader, f.payments)
	if withAliases {
		f.Store.Put(f.Names.Rules, RulesHeader, f.rules)
	} else {
		rows := make([]models.SheetRow, 0, len(f.rules))
		for _, r := range f.rules {
			trimmed := models.SheetRow{}
			for _, h := range RulesHeaderNoAliases {
				trimmed[h] = r[h]
			}
			rows = append(rows, trimmed)
		}
		f.Store.Put(f.Names.Rules, RulesHeaderNoAliases, rows)
	}
	f.Store.Put(f.Names.Discounts, DiscountsHeader, f.discounts)
	return f.Store
}

// InputRepository returns an input repository over the fixture store
func (f *TestFixtures) InputRepository() *repository.SheetInputRepository {
	return repository.NewInputRepository(f.Store, f.Names)
}

// LedgerRepository returns a ledger repository over the fixture store
func (f *TestFixtures) LedgerRepository() *repository.SheetLedgerRepository {
	return repository.NewLedgerRepository(f.Store, f.Names.Master)
}

// GroupRule is the "Junior Single - Pay As You Go" rule used across tests
func GroupRule() Rule {
	return Rule{
		Name:         "Junior Single PAYG",
		Package:      "Junior Single - Pay As You Go",
		SessionType:  "group",
		PackagePrice: 15,
		UnitPrice:    15,
		Coach:        43.5,
		BGM:          30,
		Management:   8.5,
		MFC:          18,
	}
}

// RandomFixtures fills the fixtures with n attendances spread over two weeks of March 2024,
// roughly half of them paid. The same seed yields the same data.
func RandomFixtures(seed int64, n int) *TestFixtures {
	rnd := rand.New(rand.NewSource(seed))
	customers := []string{"Kaia Attard", "Noah Borg", "Lena Camilleri", "Omar Vella", "Mia Farrugia"}
	memberships := []string{"Junior Single - Pay As You Go", "Adult 10 Pack", "Private 1:1 Session", "Unlimited Monthly"}
	offerings := []string{"KIDS COMBAT", "Boxing Fundamentals", "Private 1:1", "Muay Thai"}
	instructors := []string{"Sam", "Alex", "Jo, Sam"}

	f := NewTestFixtures()
	f.AddRule(GroupRule())
	f.AddRule(Rule{Name: "Adult 10 Pack", Package: "Adult 10 Pack", SessionType: "group", PackagePrice: 120, UnitPrice: 12, Coach: 43.5, BGM: 30, Management: 8.5, MFC: 18})
	f.AddRule(Rule{Name: "Unlimited", Package: "Unlimited Monthly", SessionType: "group", PackagePrice: 99, Coach: 40, BGM: 30, Management: 10, MFC: 20})
	f.AddRule(Rule{Name: "Private", Package: "Private 1:1 Session", SessionType: "private", PackagePrice: 50, UnitPrice: 50, Coach: 80, BGM: 15, Management: 0, MFC: 5})
	f.AddDiscount(Discount{Name: "Sibling", Code: "sibling", MatchType: "contains", Percentage: 20, PayType: "partial"})
	f.AddDiscount(Discount{Name: "Generic", Code: "discount", Percentage: 50, PayType: "partial"})

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		customer := customers[rnd.Intn(len(customers))]
		membership := memberships[rnd.Intn(len(memberships))]
		starts := base.AddDate(0, 0, rnd.Intn(14)).Add(time.Duration(rnd.Intn(10)) * time.Hour)
		f.AddAttendance(Attendance{
			Customer:    customer,
			StartsAt:    starts.Format(time.RFC3339),
			Membership:  membership,
			Offering:    offerings[rnd.Intn(len(offerings))],
			Instructors: instructors[rnd.Intn(len(instructors))],
		})
		if rnd.Intn(2) == 0 {
			memo := membership
			amount := 15.0
			switch rnd.Intn(4) {
			case 0:
				memo += " sibling"
				amount = 12
			case 1:
				memo += " discount"
				amount = 7.5
			}
			f.AddPayment(Payment{
				Date:     starts.AddDate(0, 0, -rnd.Intn(3)).Format(utils.DateLayout),
				Customer: customer,
				Memo:     memo,
				Amount:   amount,
				Invoice:  "INV-" + strconv.Itoa(1000+i),
			})
		}
	}
	return f
}

// MustParseDay parses a YYYY-MM-DD day or panics
func MustParseDay(day string) time.Time {
	t, err := time.Parse(utils.DateLayout, day)
	if err != nil {
		panic(fmt.Sprintf("invalid fixture day %q: %v", day, err))
	}
	return t
}
