// Package finboard keeps a financial dashboard's client-side data consistent
// while its backend warms up.
//
// The backend serves three collections (KPIs, products, transactions). While
// it is still connecting to its datastore each answers 202 {"message":
// "loading"}; once connected it answers 200 with a JSON array. Any other
// status is a terminal error that is not retried automatically.
//
// # Quick Start
//
//	sync, _ := finboard.New("http://localhost:1337")
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	go sync.Run(ctx)
//	_ = sync.WaitReady(ctx)
//
//	snap := sync.Snapshot()
//	for _, p := range finboard.MonthlyRevenue(*snap.KPIs.State.Data) {
//	    fmt.Println(p.Month, p.Revenue)
//	}
//
// # Readiness
//
// Each resource moves between two phases. It is settled when no retry timer
// is armed and warming while the backend answers 202, during which it is
// re-fetched every 1500ms (see [WithWarmInterval]). A 202 is never surfaced
// as an error; it only shows as [PhaseWarming]. [Snapshot.OverallWarming] is
// true until all three resources hold data or a terminal error.
//
// Warm-retry ticks are skipped while the [presence.Environment] reports the
// dashboard unfocused, and a skipped tick is made up as soon as focus
// returns. A reconnect signal re-fetches a warming resource immediately.
//
// # Forecasting
//
// [Synchronizer.Forecast] fits a least-squares line through KPI monthly
// revenue and extrapolates it; see package forecast.
//
// # Architecture
//
//   - resource: one-shot HTTP client mapping responses to a tri-state value
//   - internal/poller: the per-resource readiness state machine
//   - internal/store: latest status per resource with pub/sub
//   - internal/server: optional status API with Server-Sent Events
//   - forecast: ordinary least-squares revenue projection
//   - config: YAML configuration mapped onto [Option] values
package finboard
