//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/Sternrassler/devdata-fetch/internal/testutil"
	"github.com/Sternrassler/devdata-fetch/pkg/cache"
	"github.com/Sternrassler/devdata-fetch/pkg/client"
	"github.com/rs/zerolog"
)

func newClient(t *testing.T, c *cache.Manager) *client.Client {
	t.Helper()

	nop := zerolog.Nop()
	cfg := client.DefaultConfig("devdata-integration/1.0")
	cfg.Timeout = 10 * time.Second
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	cfg.Cache = c
	cfg.Logger = &nop

	cl, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return cl
}

func newUNDPAPI(t *testing.T) *testutil.MockAPI {
	t.Helper()

	api := testutil.NewMockAPI()
	t.Cleanup(api.Close)

	api.SetJSON("/units/operating-unit-index.json", `[{"id":"KAZ","name":"Kazakhstan"}]`)
	api.SetJSON("/units/KAZ.json", `{"projects":[{"id":"00090001","title":"Green growth"}]}`)
	api.SetJSON("/projects/00090001.json", `{
		"outputs": [{"output_id": "00095001"}],
		"document_name": [["Prodoc"], ["`+api.URL()+`/docs/prodoc.pdf"], ["pdf"]]
	}`)
	api.SetResponse("/docs/prodoc.pdf", testutil.MockResponse{StatusCode: 200, Body: "%PDF-1.4"})
	api.SetJSON("/v1/output/00095001/results", `{"data":[{"indicator_title":"Emissions","project":"00090001"}]}`)
	return api
}

func newSDGAPI(t *testing.T) *testutil.MockAPI {
	t.Helper()

	api := testutil.NewMockAPI()
	t.Cleanup(api.Close)

	api.SetJSON("/Series/List", `[
		{"code":"SI_POV_DAY1","description":"Proportion below poverty line","goal":["1"],"indicator":["1.1.1"]},
		{"code":"SH_HIV_INCD","description":"New HIV infections","goal":["3"],"indicator":["3.3.1"]}
	]`)
	api.SetJSON("/Series/SH_HIV_INCD/Dimensions", `[
		{"id":"Age","codes":[{"code":"15-49","description":"15 to 49 years old"}]},
		{"id":"Sex","codes":[{"code":"FEMALE","description":"Female"},{"code":"MALE","description":"Male"}]}
	]`)
	api.SetJSON("/Series/SI_POV_DAY1/GeoArea/398/DataSlice",
		`{"dimensions":[{"Reporting Type":"G","timePeriodStart":2017.0,"value":"0.03"}]}`)
	api.SetJSON("/Series/SH_HIV_INCD/GeoArea/398/DataSlice", `{"dimensions":[
		{"Age":"15-49","Sex":"FEMALE","Reporting Type":"G","timePeriodStart":2015.0,"value":"0.12"},
		{"Age":"15-49","Sex":"MALE","Reporting Type":"G","timePeriodStart":2015.0,"value":"0.2"}
	]}`)
	return api
}
