package domain

// Posting is one job listing as returned by the job source.
type Posting struct {
	Title          string
	CompanyName    string
	CompanyWebsite string
	JobURL         string
	EmploymentType string
	PostedAt       string
	Street         string
	Locality       string
	Country        string
}

// FullAddress joins street and locality the way the records sheet stores it.
func (p Posting) FullAddress() string {
	switch {
	case p.Street != "" && p.Locality != "":
		return p.Street + ", " + p.Locality
	case p.Street != "":
		return p.Street
	default:
		return p.Locality
	}
}
