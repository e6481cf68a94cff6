package test

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Study is a trial served by FakeAPI in both the csv and json formats.
type Study struct {
	NCTID          string
	Title          string
	Sponsor        string
	FunderType     string
	StartDate      string
	CompletionDate string
	Conditions     []string
	Phases         []string
	Enrollment     int
	// Interventions are "TYPE: Name" pairs, as in the csv format.
	Interventions []string
	Countries     []string
}

// DefaultColumns are the csv columns FakeAPI serves when no fields are
// requested.
var DefaultColumns = []string{
	"NCT Number",
	"Study Title",
	"Sponsor",
	"Funder Type",
	"Conditions",
	"Phases",
	"Enrollment",
	"Interventions",
	"Start Date",
	"Completion Date",
}

// FakeAPI is an httptest server imitating the studies and version endpoints
// of the ClinicalTrials.gov v2 API. Continuation tokens are opaque to
// clients; internally they encode the offset of the next page.
type FakeAPI struct {
	*httptest.Server

	mu       sync.Mutex
	studies  []Study
	requests []url.Values
	versions int
	fail     int
	pageCap  int
	bare     bool
}

// NewFakeAPI starts a fake API serving studies. Close it when done.
func NewFakeAPI(studies ...Study) *FakeAPI {
	f := &FakeAPI{studies: studies}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/version", f.handleVersion)
	mux.HandleFunc("/api/v2/studies", f.handleStudies)
	f.Server = httptest.NewServer(mux)
	return f
}

// BaseURL is the API root to give clients.
func (f *FakeAPI) BaseURL() string {
	return f.Server.URL + "/api/v2/"
}

// Requests returns the query of every studies request received so far.
func (f *FakeAPI) Requests() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.requests...)
}

// VersionRequests returns the number of version requests received.
func (f *FakeAPI) VersionRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.versions
}

// FailWith makes every following studies request fail with status. Zero
// turns failures off.
func (f *FakeAPI) FailWith(status int) {
	f.mu.Lock()
	f.fail = status
	f.mu.Unlock()
}

// CapPages limits every following page to n studies regardless of the
// requested page size.
func (f *FakeAPI) CapPages(n int) {
	f.mu.Lock()
	f.pageCap = n
	f.mu.Unlock()
}

// BareEmptyPages makes csv pages without studies come back as an empty
// body, with no header row.
func (f *FakeAPI) BareEmptyPages(bare bool) {
	f.mu.Lock()
	f.bare = bare
	f.mu.Unlock()
}

// SetStudies replaces the studies being served.
func (f *FakeAPI) SetStudies(studies ...Study) {
	f.mu.Lock()
	f.studies = studies
	f.mu.Unlock()
}

func (f *FakeAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.versions++
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"apiVersion":"2.0.3","dataTimestamp":"2024-05-01T09:00:00"}`)) // nolint: errcheck
}

func (f *FakeAPI) handleStudies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f.mu.Lock()
	f.requests = append(f.requests, q)
	studies := f.studies
	fail, pageCap, bare := f.fail, f.pageCap, f.bare
	f.mu.Unlock()

	if fail != 0 {
		http.Error(w, "failing on purpose", fail)
		return
	}
	size, err := strconv.Atoi(q.Get("pageSize"))
	if err != nil || size < 1 {
		size = 10
	}
	if pageCap > 0 && size > pageCap {
		size = pageCap
	}
	offset := 0
	if tok := q.Get("pageToken"); tok != "" {
		offset, err = strconv.Atoi(strings.TrimPrefix(tok, "tok"))
		if err != nil || offset > len(studies) {
			http.Error(w, "bad page token", http.StatusBadRequest)
			return
		}
	}
	end := offset + size
	if end > len(studies) {
		end = len(studies)
	}
	page := studies[offset:end]
	next := ""
	if end < len(studies) {
		next = "tok" + strconv.Itoa(end)
	}

	switch q.Get("format") {
	case "csv":
		cols := DefaultColumns
		if fields := q.Get("fields"); fields != "" {
			cols = strings.Split(fields, "|")
		}
		if next != "" {
			w.Header().Set("x-next-page-token", next)
		}
		w.Header().Set("Content-Type", "text/csv")
		if bare && len(page) == 0 {
			return
		}
		cw := csv.NewWriter(w)
		cw.Write(cols) // nolint: errcheck
		for _, s := range page {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = s.column(c)
			}
			cw.Write(row) // nolint: errcheck
		}
		cw.Flush()
	case "json":
		body := map[string]interface{}{"studies": jsonStudies(page)}
		if next != "" {
			body["nextPageToken"] = next
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body) // nolint: errcheck
	default:
		http.Error(w, "unknown format", http.StatusBadRequest)
	}
}

func (s Study) column(name string) string {
	switch name {
	case "NCT Number":
		return s.NCTID
	case "Study Title":
		return s.Title
	case "Sponsor":
		return s.Sponsor
	case "Funder Type":
		return s.FunderType
	case "Conditions":
		return strings.Join(s.Conditions, "|")
	case "Phases":
		return strings.Join(s.Phases, "|")
	case "Enrollment":
		return strconv.Itoa(s.Enrollment)
	case "Interventions":
		return strings.Join(s.Interventions, "|")
	case "Start Date":
		return s.StartDate
	case "Completion Date":
		return s.CompletionDate
	}
	return ""
}

func jsonStudies(studies []Study) []interface{} {
	out := make([]interface{}, 0, len(studies))
	for _, s := range studies {
		interventions := make([]interface{}, 0, len(s.Interventions))
		for _, iv := range s.Interventions {
			typ, name := iv, ""
			if i := strings.Index(iv, ":"); i >= 0 {
				typ, name = iv[:i], strings.TrimSpace(iv[i+1:])
			}
			interventions = append(interventions, map[string]interface{}{"type": typ, "name": name})
		}
		proto := map[string]interface{}{
			"identificationModule": map[string]interface{}{
				"nctId":      s.NCTID,
				"briefTitle": s.Title,
			},
			"sponsorCollaboratorsModule": map[string]interface{}{
				"leadSponsor": map[string]interface{}{"name": s.Sponsor, "class": s.FunderType},
			},
			"conditionsModule": map[string]interface{}{"conditions": s.Conditions},
			"designModule": map[string]interface{}{
				"phases":         s.Phases,
				"enrollmentInfo": map[string]interface{}{"count": s.Enrollment},
			},
			"armsInterventionsModule": map[string]interface{}{
				"interventions": interventions,
			},
			"statusModule": map[string]interface{}{
				"startDateStruct":      map[string]interface{}{"date": s.StartDate},
				"completionDateStruct": map[string]interface{}{"date": s.CompletionDate},
			},
		}
		if len(s.Countries) > 0 {
			locs := make([]interface{}, len(s.Countries))
			for i, c := range s.Countries {
				locs[i] = map[string]interface{}{"country": c}
			}
			proto["contactsLocationsModule"] = map[string]interface{}{"locations": locs}
		}
		out = append(out, map[string]interface{}{"protocolSection": proto})
	}
	return out
}
