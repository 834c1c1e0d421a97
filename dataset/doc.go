// Package dataset defines the query collaborators consumed by the model package.
//
// A Database hands out Datasets by table name and owns transactions. A Dataset
// is a lazy, re-usable query: Filter and Order derive new datasets without
// executing anything, and rows only move when one of the terminal methods
// (First, All, Each, Count, Insert, Update, Delete, Columns) runs.
//
// Rows travel as Values, a plain column to value mapping, so datasets stay
// independent of any record type. The model package tags a dataset with its
// record type and decodes rows back into records.
//
// # Transactions
//
// Transactions are carried by the context passed to Database.Transaction's
// callback. Every dataset call made with that context runs on the same
// transaction, and nested Transaction calls join the outer one:
//
//	err := db.Transaction(ctx, func(ctx context.Context) error {
//		if _, err := db.Dataset("items").Insert(ctx, dataset.Values{"name": "a"}, "id"); err != nil {
//			return err // rolls back
//		}
//		return nil // commits
//	})
//
// The bun backed implementation lives in internal/datasetinfra and is opened
// through pkg/di.
package dataset
