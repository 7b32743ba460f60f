// Package pagination coordinates on-demand loading of a numbered, page-based
// search result set.
//
// A Controller owns exactly one SearchSession at a time. StartSearch replaces
// the session and fetches page 1; LoadNextPage fetches the following page
// when the session is idle and more results exist; ShouldAutoLoad tells a
// scroll-driven caller whether an automatic LoadNextPage is worthwhile.
//
// Example usage:
//
//	ctrl, err := pagination.NewController[pixabay.Hit](fetcher, pagination.DefaultConfig(), pagination.Hooks[pixabay.Hit]{
//		OnItemsReady: func(items []pixabay.Hit, mode pagination.RenderMode) { gallery.Show(items, mode) },
//		OnEvent:      func(ev pagination.Event) { toast.Show(ev) },
//	})
//	out := ctrl.StartSearch(ctx, "cats")
//	if ctrl.ShouldAutoLoad(nearBottom) {
//		out = ctrl.LoadNextPage(ctx)
//	}
//
// The controller guarantees:
//   - at most one fetch in flight per session, whatever triggers it
//   - the loading flag is cleared on every exit path of a fetch
//   - exhaustion is sticky until the next StartSearch
//   - responses for a replaced session are discarded without side effects
package pagination
