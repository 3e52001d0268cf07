// Package strata is the composition root of the Strata object-document mapper.
//
// Strata stores a whole inheritance tree of document types in one collection.
// The root type writes no discriminator; every derived type writes its tag in
// the discriminator field (default "type"). Repositories are scoped to a type
// and its descendants, queries rebuild the concrete type of each record, and an
// identity map per hierarchy keeps one live instance per stored identifier.
//
// Features:
//
//   - **Single-collection inheritance**: field and hook inheritance, type-scoped count/remove/query.
//   - **Dirty tracking**: updates write only the changed fields.
//   - **Lifecycle hooks**: Pre/Post Inserting, Updating and Deleting, fired base type first.
//   - **Pluggable stores**: in-memory (`memory://`) and MongoDB (`mongodb://`) adapters behind `core.Store`.
//   - **Declarative schema**: types compiled from Go values or YAML files.
//
// Usage:
//
//	engine, err := strata.New(ctx, "memory://",
//		strata.WithSchemaDir("./schemas"),
//		strata.WithLogger(logger),
//	)
//
//	doc, _ := engine.Create("model.TextareaFormElement")
//	_ = doc.Set("label", "Comments")
//	err = engine.Save(ctx, doc)
package strata
