// Package core provides the business logic for clash report triage.
//
// The package holds all domain logic independent of any UI or transport
// layer. The web server and the headless CLI both drive it through a
// [Session].
//
// # Import
//
// A Navisworks clash report exported to CSV is read by [ReadImport], which
// strips the BOM and repairs invalid UTF-8, then parsed by
// [ParseClashCSV]. Columns are located heuristically from normalized header
// tokens, see [InferColumns]. Every parsed clash starts as PENDING.
//
//	res, err := session.Load(ctx, "report.csv", file)
//
// Importing a report replaces the previous dataset and cancels any run in
// flight.
//
// # Triage Runs
//
// [Session.StartTriage] snapshots the PENDING clashes and hands them to the
// [Orchestrator], which sends them to the [Classifier] in batches:
//
//  1. The batch is marked PROCESSING
//  2. One classifier call is made per batch
//  3. Returned results mark clashes COMPLETED; missing ids and failed
//     calls mark them FAILED
//  4. Progress is broadcast to subscribers via [Session.SubscribeProgress]
//  5. The orchestrator pauses for the cooldown before the next batch
//
// Only one run may be active at a time. Cancellation takes effect between
// batches; clashes that were never dispatched stay PENDING.
//
// # Export
//
// [WriteExport] writes the triaged report in [ExportColumns] order with
// every value double-quoted.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IMP001-IMP003: Import errors (size, missing file, file type)
//   - RUN001-RUN006: Triage run errors
//   - AI001-AI004: Classifier errors (credentials, provider, quota)
//   - RATE001: Rate limiting
package core
