// Package pkg provides the libraries behind defectset, a generator of
// synthetic defect detection datasets.
//
// # Overview
//
// defectset starts from two sparse label sets (gray and bright defects in
// YOLO format) and a few numbered base images, and produces a partitioned
// object-detection dataset:
//
//	gray + bright labels
//	         ↓
//	    [label], [sample] (merge, sample or parity-split scenes)
//	         ↓
//	    [patch], [composite], [enhance] (paint patches onto base images)
//	         ↓
//	    [dataset], [partition] (train/valid/test layout, background crops)
//	         ↓
//	    [mask], [noise] (inpainting masks, noisy copies)
//
// [pipeline] runs these stages with a shared worker pool ([pool]), an
// enhancement cache ([cache]) and coded errors ([errors]). [config] reads
// the TOML run configuration.
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, logger)
//	summary, err := runner.Execute(ctx, pipeline.Options{
//	    Scenario:     pipeline.ScenarioRandom,
//	    GrayLabels:   "labels/gray",
//	    BrightLabels: "labels/bright",
//	    BaseImages:   "base",
//	    Templates:    "patches",
//	})
//
// # Main Packages
//
// [geom] - Points, directions and the axis, diagonal and half classifiers.
//
// [label] - YOLO label records and files: parsing, merging, resizing by
// direction.
//
// [sample] - Constrained random selection of label scenes with acceptance
// statistics.
//
// [raster] - Image loading, saving and pixel helpers.
//
// [patch] - Defect patch templates per style and direction.
//
// [composite] - Pastes patches centered on label positions.
//
// [enhance] - Contrast enhancement presets (sigmoid, gamma, equalization,
// CLAHE).
//
// [partition] - Base image id to train/valid/test assignment.
//
// [dataset] - Output layout, splitting and inpainting collection.
//
// [mask] - Inpainting masks from label records.
//
// [noise] - Poisson and Gaussian noise levels.
//
// [observability] - Optional hooks for stage and cache events.
//
// [geom]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/geom
// [label]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/label
// [sample]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/sample
// [raster]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/raster
// [patch]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/patch
// [composite]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/composite
// [enhance]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/enhance
// [partition]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/partition
// [dataset]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/dataset
// [mask]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/mask
// [noise]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/noise
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/pipeline
// [pool]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/pool
// [cache]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/errors
// [config]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/config
// [observability]: https://pkg.go.dev/github.com/matzehuels/defectset/pkg/observability
package pkg
