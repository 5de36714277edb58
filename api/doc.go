// Package api is the catalogue of backend queries and mutations.
//
// Each query is declared once: its cache.Key, the endpoint that loads it and
// the tags its data provides. Each mutation declares the endpoint it calls,
// the tags it invalidates and, where the UI must react before the server
// answers, the optimistic patches it applies.
//
// Queries return live handles over the shared cache.Store:
//
//	feed, err := a.Feed()
//	defer feed.Close()
//	posts, err := feed.Wait(ctx)
//	err = feed.FetchNext(ctx)
//
//	post, err := a.Post("p1")
//	defer post.Close()
//	p, err := post.Wait(ctx)
//
// Mutations run through the mutation.Dispatcher:
//
//	updated, err := a.SetLiked(ctx, "p1", true)
package api
