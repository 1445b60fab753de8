package recon

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
	"github.com/kbukum/reconflow/store"
)

func workItem(a, b profile.Side, entities map[string]string) *profile.WorkItem {
	return &profile.WorkItem{ID: "BRK-T", Category: "TRADE_OMS_MISMATCH", SystemA: &a, SystemB: &b, Entities: entities}
}

func side(amount, qty, price float64, ccy, date, ref string) profile.Side {
	return profile.Side{Source: "oms", Amount: amount, Quantity: qty, Price: price, Currency: ccy, TradeDate: date, Reference: ref}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

var ctx = context.Background()

func TestIngestion(t *testing.T) {
	res, err := Ingestion{}.Invoke(ctx, workItem(
		side(100, 1, 100, " usd ", "2026-01-05", ""),
		side(101, 1, 101, "usd", "2026-01-05", ""),
		nil), dag.Results{})
	if err != nil {
		t.Fatal(err)
	}
	if res["status"] != "INGESTED" {
		t.Errorf("status = %v, result %v", res["status"], res)
	}
	norm := res["normalized"].(map[string]any)["system_a"].(map[string]any)
	if norm["currency"] != "USD" || norm["source"] != "OMS" {
		t.Errorf("normalized = %v", norm)
	}

	res, err = Ingestion{}.Invoke(ctx, workItem(
		side(100, 1, 100, "USD", "05/01/2026", ""),
		side(100, 1, 100, "", "", ""),
		nil), dag.Results{})
	if err != nil {
		t.Fatal(err)
	}
	v := res["validation"].(map[string]any)
	want := []string{`system_a trade_date "05/01/2026" is not YYYY-MM-DD`, "system_b has no currency"}
	if res["status"] != "VALIDATION_FAILED" || v["is_valid"] != false || !reflect.DeepEqual(v["issues"], want) {
		t.Errorf("validation = %v", v)
	}

	if _, err := (Ingestion{}).Invoke(ctx, &profile.WorkItem{ID: "x"}, dag.Results{}); err == nil {
		t.Error("expected error for a work item without sides")
	}
}

func TestEnrichment(t *testing.T) {
	tests := []struct {
		name       string
		entities   map[string]string
		wantErr    bool
		wantStatus string
		wantOK     int
	}{
		{"all resolve", map[string]string{"instrument": "aapl", "account": "ACC-001", "counterparty": "GS"}, false, "ENRICHED", 3},
		{"partial", map[string]string{"instrument": "AAPL", "account": "ACC-404"}, false, "ENRICHED", 1},
		{"nothing resolves", map[string]string{"instrument": "NOPE"}, true, "", 0},
		{"no references", nil, false, "NO_REFERENCES", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := workItem(side(1, 0, 0, "USD", "", ""), side(2, 0, 0, "USD", "", ""), tt.entities)
			res, err := Enrichment{}.Invoke(ctx, item, dag.Results{})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", res)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if res["status"] != tt.wantStatus || res["sources_successful"] != tt.wantOK {
				t.Errorf("result = %v", res)
			}
		})
	}
}

func TestRules(t *testing.T) {
	r := Rules{Settings: DefaultSettings()}
	tests := []struct {
		name         string
		a, b         profile.Side
		results      dag.Results
		wantWithin   bool
		wantRounding bool
		wantViolated []string
	}{
		{
			name:         "rounding",
			a:            side(100_000, 100, 1000, "USD", "2026-01-05", ""),
			b:            side(100_000.5, 100, 1000, "USD", "2026-01-05", ""),
			wantWithin:   true,
			wantRounding: true,
			wantViolated: []string{},
		},
		{
			name:         "outside tolerance",
			a:            side(100_000, 100, 1000, "USD", "", ""),
			b:            side(101_000, 100, 1010, "USD", "", ""),
			wantViolated: []string{RuleAmountTolerance},
		},
		{
			name:         "instrument tolerance override",
			a:            side(100_000, 100, 1000, "USD", "", ""),
			b:            side(101_000, 100, 1010, "USD", "", ""),
			results:      dag.NewResults(map[string]dag.Result{TaskDataEnrichment: {"enriched_data": map[string]any{"instrument": map[string]any{"tolerance_bps": 200.0}}}}),
			wantWithin:   true,
			wantViolated: []string{},
		},
		{
			name:         "currency mismatch",
			a:            side(5_000, 10, 500, "USD", "", ""),
			b:            side(5_000, 10, 500, "EUR", "", ""),
			wantViolated: []string{RuleCurrency},
		},
		{
			name:         "quantity mismatch",
			a:            side(5_000, 10, 500, "USD", "", ""),
			b:            side(5_000, 9, 500, "USD", "", ""),
			wantViolated: []string{RuleQuantityTolerance},
		},
		{
			name:         "timing lag is not a violation",
			a:            side(5_000, 10, 500, "USD", "2026-01-05", ""),
			b:            side(5_000, 10, 500, "USD", "2026-01-06", ""),
			wantWithin:   true,
			wantRounding: true,
			wantViolated: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Invoke(ctx, workItem(tt.a, tt.b, nil), tt.results)
			if err != nil {
				t.Fatal(err)
			}
			if res["within_tolerance"] != tt.wantWithin {
				t.Errorf("within_tolerance = %v", res["within_tolerance"])
			}
			if res["within_rounding_tolerance"] != tt.wantRounding {
				t.Errorf("within_rounding_tolerance = %v", res["within_rounding_tolerance"])
			}
			if !reflect.DeepEqual(res["violated_rules"], tt.wantViolated) {
				t.Errorf("violated_rules = %v", res["violated_rules"])
			}
		})
	}
}

func TestMatching(t *testing.T) {
	m := Matching{Settings: DefaultSettings()}

	t.Run("direct", func(t *testing.T) {
		res, err := m.Invoke(ctx, workItem(
			side(1000, 10, 100, "USD", "2026-01-05", "T1"),
			side(1000, 10, 100, "USD", "2026-01-05", "T1"), nil), dag.Results{})
		if err != nil {
			t.Fatal(err)
		}
		if res["best_score"] != 1.0 || res["best_match_type"] != MatchDirect || res["match_found"] != true {
			t.Errorf("result = %v", res)
		}
	})

	t.Run("partial fill", func(t *testing.T) {
		res, err := m.Invoke(ctx, workItem(
			side(1000, 10, 100, "USD", "2026-01-05", "T1"),
			side(400, 4, 100, "USD", "2026-01-05", ""), nil), dag.Results{})
		if err != nil {
			t.Fatal(err)
		}
		if !approx(res["best_score"].(float64), 0.96) || res["best_match_type"] != MatchPartialFill || res["num_candidates"] != 1 {
			t.Errorf("result = %v", res)
		}
	})

	t.Run("no match", func(t *testing.T) {
		res, err := m.Invoke(ctx, workItem(
			side(1000, 10, 100, "USD", "2026-01-05", ""),
			side(100, 0, 0, "EUR", "2026-01-09", ""), nil), dag.Results{})
		if err != nil {
			t.Fatal(err)
		}
		if res["status"] != "NO_MATCHES" || res["best_score"] != 0.0 || res["match_found"] != false {
			t.Errorf("result = %v", res)
		}
		if c := res["match_candidates"].([]map[string]any); c == nil || len(c) != 0 {
			t.Errorf("candidates = %#v", c)
		}
	})
}

func TestPattern(t *testing.T) {
	item := workItem(side(100_000, 100, 1000, "USD", "", ""), side(100_000.5, 100, 1000, "USD", "", ""), nil)
	tests := []struct {
		name    string
		results dag.Results
		want    string
		conf    float64
	}{
		{"no upstream", dag.Results{}, CauseUnexplained, 0.4},
		{"rounding", dag.NewResults(map[string]dag.Result{TaskRulesTolerance: {"difference": 0.5, "within_rounding_tolerance": true}}), CauseRounding, 0.97},
		{"fx", dag.NewResults(map[string]dag.Result{TaskRulesTolerance: {"difference": 0.5, "currency_mismatch": true}}), CauseFXConversion, 0.88},
		{"partial fill", dag.NewResults(map[string]dag.Result{TaskMatchingCorrelation: {"best_match_type": MatchPartialFill}}), CausePartialFill, 0.9},
		{"unexplained large", dag.NewResults(map[string]dag.Result{TaskRulesTolerance: {"difference": 40_000.0}}), CauseDataEntry, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Pattern{}.Invoke(ctx, item, tt.results)
			if err != nil {
				t.Fatal(err)
			}
			if res["root_cause"] != tt.want || res["confidence"] != tt.conf {
				t.Errorf("got %v (%v), want %s (%v)", res["root_cause"], res["confidence"], tt.want, tt.conf)
			}
		})
	}
}

func TestDecisioning(t *testing.T) {
	d := Decisioning{Settings: DefaultSettings()}
	item := workItem(side(1000, 1, 1000, "USD", "", ""), side(1000.5, 1, 1000.5, "USD", "", ""), nil)
	rules := func(diff float64, within, ccy bool) dag.Result {
		return dag.Result{"difference": diff, "within_tolerance": within, "currency_mismatch": ccy}
	}
	tests := []struct {
		name    string
		results map[string]dag.Result
		want    dag.Action
	}{
		{"auto resolve", map[string]dag.Result{TaskRulesTolerance: rules(0.5, true, false)}, dag.ActionAutoResolve},
		{"escalate on amount", map[string]dag.Result{TaskRulesTolerance: rules(150_000, false, false)}, dag.ActionEscalate},
		{"escalate on risk", map[string]dag.Result{TaskRulesTolerance: rules(80_000, false, true)}, dag.ActionEscalate},
		{"review outside tolerance", map[string]dag.Result{TaskRulesTolerance: rules(1000, false, false)}, dag.ActionHILReview},
		{"review without rules", nil, dag.ActionHILReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := d.Invoke(ctx, item, dag.NewResults(tt.results))
			if err != nil {
				t.Fatal(err)
			}
			dec := res["decision"].(map[string]any)
			if dag.Action(dec["action"].(string)) != tt.want {
				t.Errorf("action = %v, explanation %q", dec["action"], dec["explanation"])
			}
			conf := dec["confidence"].(float64)
			if conf <= 0 || conf > 1 {
				t.Errorf("confidence = %v", conf)
			}
		})
	}
}

func TestWorkflow(t *testing.T) {
	item := workItem(side(1000, 1, 1000, "USD", "", ""), side(1000.5, 1, 1000.5, "USD", "", ""), nil)

	t.Run("auto resolved ticket", func(t *testing.T) {
		repo := store.NewMemory()
		results := dag.NewResults(map[string]dag.Result{TaskDecisioning: {
			"risk_score": 0.1,
			"decision":   map[string]any{"action": "AUTO_RESOLVE"},
		}})
		res, err := Workflow{Store: repo}.Invoke(ctx, item, results)
		if err != nil {
			t.Fatal(err)
		}
		tk, err := repo.GetTicket(ctx, res["ticket_id"].(string))
		if err != nil {
			t.Fatal(err)
		}
		if tk.Status != store.TicketResolved || tk.Queue != "auto" || tk.Priority != "LOW" || tk.ResolvedAt == nil {
			t.Errorf("ticket = %+v", tk)
		}
		trail, _ := repo.Audit(ctx, item.ID)
		if len(trail) != 1 || trail[0].Event != store.EventWorkflowCreated || trail[0].Details["ticket_id"] != tk.ID {
			t.Errorf("audit = %+v", trail)
		}
	})

	t.Run("no decision routes to review", func(t *testing.T) {
		repo := store.NewMemory()
		res, err := Workflow{Store: repo}.Invoke(ctx, item, dag.Results{})
		if err != nil {
			t.Fatal(err)
		}
		if res["ticket_status"] != string(store.TicketOpen) || res["queue"] != "hil-review" {
			t.Errorf("result = %v", res)
		}
	})

	t.Run("escalation", func(t *testing.T) {
		repo := store.NewMemory()
		results := dag.NewResults(map[string]dag.Result{TaskDecisioning: {
			"risk_score": 0.8,
			"decision":   map[string]any{"action": "ESCALATE"},
		}})
		res, err := Workflow{Store: repo}.Invoke(ctx, item, results)
		if err != nil {
			t.Fatal(err)
		}
		if res["ticket_status"] != string(store.TicketEscalated) || res["priority"] != "HIGH" {
			t.Errorf("result = %v", res)
		}
	})

	t.Run("no store", func(t *testing.T) {
		if _, err := (Workflow{}).Invoke(ctx, item, dag.Results{}); err == nil {
			t.Error("expected error")
		}
	})
}
