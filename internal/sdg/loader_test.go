package sdg

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/devdata-fetch/internal/testutil"
	"github.com/Sternrassler/devdata-fetch/pkg/client"
	"github.com/Sternrassler/devdata-fetch/pkg/storage/memory"
	"github.com/rs/zerolog"
)

const (
	seriesListBody = `[
		{"code": "SI_POV_DAY1", "description": "Proportion of population below international poverty line (%)", "goal": ["1"], "indicator": ["1.1.1"]},
		{"code": "SH_HIV_INCD", "description": "Number of new HIV infections per 1,000 uninfected population", "goal": ["3"], "indicator": ["3.3.1"]}
	]`

	hivDimensionsBody = `[
		{"id": "Age", "codes": [
			{"code": "ALLAGE ", "description": "All age ranges or no breakdown by age "},
			{"code": "15-49", "description": "15 to 49 years old"}
		]},
		{"id": "Sex", "codes": [
			{"code": "FEMALE", "description": "Female"},
			{"code": "MALE", "description": "Male"},
			{"code": "BOTHSEX", "description": "Both sexes"}
		]},
		{"id": "Reporting Type", "codes": [{"code": "G", "description": "Global"}]}
	]`

	hivKazSliceBody = `{"dimensions": [
		{"Age": "15-49", "Sex": "FEMALE", "Reporting Type": "G", "timePeriodStart": 2015.0, "value": "0.12", "Nature": "E"},
		{"Age": "15-49", "Sex": "MALE", "Reporting Type": "G", "timePeriodStart": 2015.0, "value": "0.2", "Nature": "E"}
	]}`

	povKazSliceBody = `{"dimensions": [
		{"Reporting Type": "G", "timePeriodStart": 2017.0, "value": "0.03", "Location": "ALLAREA"}
	]}`
)

func newTestFetcher(t *testing.T) *client.Client {
	t.Helper()

	nop := zerolog.Nop()
	cfg := client.DefaultConfig("devdata-test/1.0")
	cfg.Timeout = 5 * time.Second
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 1.0,
	}
	cfg.Logger = &nop

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return c
}

func newFixtureAPI(t *testing.T) *testutil.MockAPI {
	t.Helper()

	api := testutil.NewMockAPI()
	t.Cleanup(api.Close)

	api.SetJSON("/Series/List", seriesListBody)
	api.SetJSON("/Series/SH_HIV_INCD/Dimensions", hivDimensionsBody)
	api.SetJSON("/Series/SH_HIV_INCD/GeoArea/398/DataSlice", hivKazSliceBody)
	api.SetJSON("/Series/SI_POV_DAY1/GeoArea/398/DataSlice", povKazSliceBody)
	return api
}

func newTestLoader(t *testing.T, api *testutil.MockAPI, store *memory.Store) *Loader {
	t.Helper()
	return NewLoader(newTestFetcher(t), store, Options{
		BaseURL:     api.URL(),
		Countries:   Countries{398: "KAZ", 417: "KGZ"},
		IgnoreCodes: []string{"BOTHSEX"},
	})
}

func TestLoadSeriesList(t *testing.T) {
	api := newFixtureAPI(t)
	store := memory.New()
	l := newTestLoader(t, api, store)
	ctx := context.Background()

	series, err := l.LoadSeriesList(ctx, false)
	if err != nil {
		t.Fatalf("LoadSeriesList() error = %v", err)
	}
	if len(series) != 2 || series[1].Code != "SH_HIV_INCD" || series[1].Indicator[0] != "3.3.1" {
		t.Errorf("series = %+v", series)
	}
	if ok, _ := store.Exists(ctx, SeriesListKey); !ok {
		t.Error("series list not cached")
	}

	if _, err := l.LoadSeriesList(ctx, false); err != nil {
		t.Fatalf("cached LoadSeriesList() error = %v", err)
	}
	if got := api.Count("/Series/List"); got != 1 {
		t.Errorf("requests = %d, want 1 with a cached list", got)
	}

	if _, err := l.LoadSeriesList(ctx, true); err != nil {
		t.Fatalf("forced LoadSeriesList() error = %v", err)
	}
	if got := api.Count("/Series/List"); got != 2 {
		t.Errorf("requests = %d, want 2 after force", got)
	}
}

func TestLoadSeriesList_FailureIsFatal(t *testing.T) {
	api := testutil.NewMockAPI()
	defer api.Close()
	api.SetResponse("/Series/List", testutil.NewServerErrorResponse())
	l := newTestLoader(t, api, memory.New())

	if _, err := l.LoadSeriesList(context.Background(), false); client.Class(err) != client.ErrorClassHTTP {
		t.Errorf("LoadSeriesList() error = %v, want http class", err)
	}
}

func TestFilterGoals(t *testing.T) {
	series := []Series{
		{Code: "A", Goal: []string{"1"}},
		{Code: "B", Goal: []string{"3", "17"}},
		{Code: "C", Goal: []string{"5"}},
	}

	tests := []struct {
		goals []string
		want  []string
	}{
		{nil, []string{"A", "B", "C"}},
		{[]string{"1", "17"}, []string{"A", "B"}},
		{[]string{"9"}, nil},
	}
	for _, tt := range tests {
		var got []string
		for _, s := range FilterGoals(series, tt.goals) {
			got = append(got, s.Code)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FilterGoals(%v) = %v, want %v", tt.goals, got, tt.want)
		}
	}
}

func TestGetDims(t *testing.T) {
	api := newFixtureAPI(t)
	l := newTestLoader(t, api, memory.New())

	dims, err := l.GetDims(context.Background(), "SH_HIV_INCD", []string{"Reporting Type"})
	if err != nil {
		t.Fatalf("GetDims() error = %v", err)
	}
	if !reflect.DeepEqual(dims, []string{"Age", "Sex"}) {
		t.Errorf("GetDims() = %v", dims)
	}
}

func TestExpand(t *testing.T) {
	api := newFixtureAPI(t)
	l := newTestLoader(t, api, memory.New())
	ctx := context.Background()

	hiv := Series{Code: "SH_HIV_INCD", Description: "HIV incidence"}
	variants, err := l.Expand(ctx, hiv)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	want := []Variant{
		{"SH_HIV_INCD_ALLAGE_FEMALE", "HIV incidence, All age ranges or no breakdown by age, Female"},
		{"SH_HIV_INCD_ALLAGE_MALE", "HIV incidence, All age ranges or no breakdown by age, Male"},
		{"SH_HIV_INCD_15-49_FEMALE", "HIV incidence, 15 to 49 years old, Female"},
		{"SH_HIV_INCD_15-49_MALE", "HIV incidence, 15 to 49 years old, Male"},
	}
	if !reflect.DeepEqual(variants, want) {
		t.Errorf("Expand() =\n%v\nwant\n%v", variants, want)
	}
}

func TestExpand_Unregistered(t *testing.T) {
	api := newFixtureAPI(t)
	l := newTestLoader(t, api, memory.New())

	pov := Series{Code: "SI_POV_DAY1", Description: "Poverty"}
	variants, err := l.Expand(context.Background(), pov)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if !reflect.DeepEqual(variants, []Variant{{"SI_POV_DAY1", "Poverty"}}) {
		t.Errorf("Expand() = %v", variants)
	}
	if api.Count("/Series/SI_POV_DAY1/Dimensions") != 0 {
		t.Error("unregistered series should not fetch dimensions")
	}
}

func TestExpand_MissingDimension(t *testing.T) {
	api := newFixtureAPI(t)
	api.SetJSON("/Series/SH_HIV_INCD/Dimensions", `[{"id": "Sex", "codes": [{"code": "MALE", "description": "Male"}]}]`)
	l := newTestLoader(t, api, memory.New())

	hiv := Series{Code: "SH_HIV_INCD", Description: "HIV incidence"}
	variants, err := l.Expand(context.Background(), hiv)
	if !errors.Is(err, ErrDimensionNotFound) {
		t.Errorf("Expand() error = %v, want ErrDimensionNotFound", err)
	}
	if !reflect.DeepEqual(variants, []Variant{{"SH_HIV_INCD", "HIV incidence"}}) {
		t.Errorf("Expand() = %v, want base variant", variants)
	}
}

func TestLoadSeriesData(t *testing.T) {
	api := newFixtureAPI(t)
	store := memory.New()
	l := newTestLoader(t, api, store)
	ctx := context.Background()

	status, err := l.LoadSeriesData(ctx, "SH_HIV_INCD", []int{398, 417}, []string{"Age", "Sex"})
	if err != nil {
		t.Fatalf("LoadSeriesData() error = %v", err)
	}
	if status != StatusLoaded {
		t.Errorf("status = %v, want loaded", status)
	}

	want := "KAZ\tSH_HIV_INCD_15-49_FEMALE\t2015.0\t0.12\t[('Age', '15-49'), ('Sex', 'FEMALE'), ('Nature', 'E')]\n" +
		"KAZ\tSH_HIV_INCD_15-49_MALE\t2015.0\t0.2\t[('Age', '15-49'), ('Sex', 'MALE'), ('Nature', 'E')]\n"
	got, err := store.Read(ctx, "Data/SH_HIV_INCD.tsv")
	if err != nil {
		t.Fatalf("series file not written: %v", err)
	}
	if string(got) != want {
		t.Errorf("series file =\n%q\nwant\n%q", got, want)
	}

	if _, err := l.LoadSeriesData(ctx, "SI_POV_DAY1", []int{398}, nil); err != nil {
		t.Fatalf("LoadSeriesData() error = %v", err)
	}
	all, _ := store.Read(ctx, AllDataKey)
	lines := strings.Split(strings.TrimSuffix(string(all), "\n"), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[2], "KAZ\tSI_POV_DAY1\t2017.0\t0.03\t[('Location', 'ALLAREA')]") {
		t.Errorf("all data =\n%s", all)
	}
}

func TestLoadSeriesData_SkipsExisting(t *testing.T) {
	api := newFixtureAPI(t)
	store := memory.New()
	ctx := context.Background()
	_ = store.Write(ctx, "Data/SH_HIV_INCD.tsv", []byte("existing\n"))
	l := newTestLoader(t, api, store)

	status, err := l.LoadSeriesData(ctx, "SH_HIV_INCD", []int{398}, nil)
	if err != nil {
		t.Fatalf("LoadSeriesData() error = %v", err)
	}
	if status != StatusSkipped {
		t.Errorf("status = %v, want skipped", status)
	}
	if api.GetRequestCount() != 0 {
		t.Errorf("requests = %d, want 0", api.GetRequestCount())
	}
	if ok, _ := store.Exists(ctx, AllDataKey); ok {
		t.Error("skipped series must not append to the combined file")
	}
}

func TestLoadSeriesData_MissingDimensionStillWritten(t *testing.T) {
	api := newFixtureAPI(t)
	store := memory.New()
	l := newTestLoader(t, api, store)
	ctx := context.Background()

	if _, err := l.LoadSeriesData(ctx, "SI_POV_DAY1", []int{398}, []string{"Sex"}); err != nil {
		t.Fatalf("LoadSeriesData() error = %v", err)
	}
	got, _ := store.Read(ctx, "Data/SI_POV_DAY1.tsv")
	if !strings.HasPrefix(string(got), "KAZ\tSI_POV_DAY1\t") {
		t.Errorf("series file = %q", got)
	}
}

func TestLoadSeriesData_Cancelled(t *testing.T) {
	api := newFixtureAPI(t)
	store := memory.New()
	l := newTestLoader(t, api, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.LoadSeriesData(ctx, "SH_HIV_INCD", []int{398}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadSeriesData() error = %v, want context.Canceled", err)
	}
	if ok, _ := store.Exists(context.Background(), "Data/SH_HIV_INCD.tsv"); ok {
		t.Error("cancelled load must not leave a series file")
	}
}

func TestRun(t *testing.T) {
	api := newFixtureAPI(t)
	store := memory.New()
	l := newTestLoader(t, api, store)
	ctx := context.Background()

	sum, err := l.Run(ctx, RunOptions{Goals: []string{"3"}, Countries: []int{398}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := RunSummary{Series: 2, Selected: 1, Loaded: 1, Variants: 5}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
	if ok, _ := store.Exists(ctx, "Data/SI_POV_DAY1.tsv"); ok {
		t.Error("series outside the goal filter was loaded")
	}

	csv, err := store.Read(ctx, MetadataCSVKey)
	if err != nil {
		t.Fatalf("metadata csv not written: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(csv), "\n"), "\n")
	if len(lines) != 6 || lines[0] != `"code","name","source","metadata"` {
		t.Fatalf("csv =\n%s", csv)
	}
	wantLine := `"SH_HIV_INCD_15-49_MALE","Number of new HIV infections per 1,000 uninfected population, 15 to 49 years old, Male",` +
		`"UNSTAT Global SDG Indicators Database","https://unstats.un.org/wiki/display/SDGeHandbook/Indicator+3.3.1"`
	if lines[5] != wantLine {
		t.Errorf("last csv line =\n%s\nwant\n%s", lines[5], wantLine)
	}

	if ok, _ := store.Exists(ctx, MetadataJSONKey); !ok {
		t.Error("metadata json not written")
	}

	// A second run skips the loaded series.
	sum, err = l.Run(ctx, RunOptions{Goals: []string{"3"}, Countries: []int{398}})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if sum.Skipped != 1 || sum.Loaded != 0 {
		t.Errorf("second summary = %+v", sum)
	}
}

func TestWriteMetadata_Quoting(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	entries := []MetadataEntry{{Code: "X", Name: `Say "hi", Ünïcode`, Source: "S", Metadata: "M"}}
	if err := WriteMetadata(ctx, store, entries); err != nil {
		t.Fatalf("WriteMetadata() error = %v", err)
	}

	csv, _ := store.Read(ctx, MetadataCSVKey)
	want := "\"code\",\"name\",\"source\",\"metadata\"\n\"X\",\"Say \"\"hi\"\", Ünïcode\",\"S\",\"M\"\n"
	if string(csv) != want {
		t.Errorf("csv =\n%q\nwant\n%q", csv, want)
	}

	js, _ := store.Read(ctx, MetadataJSONKey)
	if !strings.Contains(string(js), "Ünïcode") || !strings.Contains(string(js), "\n    {\n        \"code\": \"X\"") {
		t.Errorf("json =\n%s", js)
	}
}

func TestExpand_LocationVariants(t *testing.T) {
	api := newFixtureAPI(t)
	api.SetJSON("/Series/SI_POV_NAHC/Dimensions", `[
		{"id": "Location", "codes": [
			{"code": "URBAN", "description": "Urban"},
			{"code": "RURAL", "description": "Rural"}
		]},
		{"id": "Reporting Type", "codes": [{"code": "N", "description": "National"}]}
	]`)
	l := newTestLoader(t, api, memory.New())

	nahc := Series{Code: "SI_POV_NAHC", Description: "Proportion below national poverty line"}
	variants, err := l.Expand(context.Background(), nahc)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	want := []Variant{
		{"SI_POV_NAHC_URBAN", "Proportion below national poverty line, Urban"},
		{"SI_POV_NAHC_RURAL", "Proportion below national poverty line, Rural"},
	}
	if !reflect.DeepEqual(variants, want) {
		t.Errorf("Expand() = %v, want %v", variants, want)
	}
}
