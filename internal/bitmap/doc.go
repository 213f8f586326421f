// Package bitmap wraps roaring bitmaps as compact sets of 32-bit item handles.
//
// The spatial hash stores one Set per occupied cell and unions cell sets during
// queries. Scratch sets for those unions come from a sync.Pool via Get and Put.
package bitmap
