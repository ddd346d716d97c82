package distributor

import "sort"

// Family selects the provider adapter used for a distributor.
type Family int

const (
	// FamilyStandard distributors expose several units per login and need a
	// unit lookup before the protocol exchange.
	FamilyStandard Family = iota
	// FamilySingleUser distributors authenticate every API call with a single
	// fixed API user and address the account code directly.
	FamilySingleUser
)

func (f Family) String() string {
	switch f {
	case FamilySingleUser:
		return "single-user"
	default:
		return "standard"
	}
}

type Profile struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ChannelCode string `json:"channelCode"`
	RegionCode  string `json:"regionCode"`
	APIUser     string `json:"apiUser"`
	APIBaseHost string `json:"apiBaseHost"`
	LoginURL    string `json:"loginUrl"`
	Family      Family `json:"family"`
}

const (
	portalURL     = "https://agenciavirtual.neoenergia.com/#/login"
	brasiliaURL   = "https://agenciavirtual.neoenergiabrasilia.com.br/#/login"
	standardHost  = "https://apineprd.neoenergia.com"
	brasiliaHost  = "https://apineprd.neoenergiabrasilia.com.br"
	standardUser  = "WSO2_CONEXAO"
	brasiliaUser  = "NEOBR_API"
	channelPortal = "AGC"
)

var profiles = map[int]Profile{
	11: {ID: 11, Name: "COELBA", ChannelCode: channelPortal, RegionCode: "NE", APIUser: standardUser, APIBaseHost: standardHost, LoginURL: portalURL},
	12: {ID: 12, Name: "CELPE", ChannelCode: channelPortal, RegionCode: "NE", APIUser: standardUser, APIBaseHost: standardHost, LoginURL: portalURL},
	13: {ID: 13, Name: "COSERN", ChannelCode: channelPortal, RegionCode: "NE", APIUser: standardUser, APIBaseHost: standardHost, LoginURL: portalURL},
	14: {ID: 14, Name: "ELEKTRO", ChannelCode: "AGE", RegionCode: "SE", APIUser: standardUser, APIBaseHost: standardHost, LoginURL: portalURL},
	15: {ID: 15, Name: "BRASILIA", ChannelCode: "AGB", RegionCode: "CO", APIUser: brasiliaUser, APIBaseHost: brasiliaHost, LoginURL: brasiliaURL, Family: FamilySingleUser},
}

// Lookup returns the profile for a distributor id. Unknown ids report false
// and are excluded from processing by callers.
func Lookup(id int) (Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// All returns every known profile ordered by id.
func All() []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithHost returns a copy of p pointed at another API host and login page.
// Used to aim a profile at a staging environment or a test server.
func (p Profile) WithHost(apiHost, loginURL string) Profile {
	if apiHost != "" {
		p.APIBaseHost = apiHost
	}
	if loginURL != "" {
		p.LoginURL = loginURL
	}
	return p
}
