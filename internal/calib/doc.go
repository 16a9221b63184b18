// Package calib estimates anchor coordinates from inter-anchor ranging
// data, so a site survey needs a tape measure for only a few reference
// anchors instead of all of them.
//
// Calibration is a two-stage procedure. Stage one iterates a closed-form
// least-squares trilateration: each free anchor is repositioned from its
// ranges to the others until the coordinates stop moving. Stage two refines
// the whole geometry at once, minimizing the squared disagreement between
// inter-anchor distances and measured ranges with a Nelder-Mead simplex
// search. Anchors marked fixed keep their surveyed coordinates through both
// stages and pin the solution's frame of reference.
//
// Ranging samples come from the modules themselves: each anchor reports its
// measured distance to every other anchor, -1 marking a failed measurement.
// Samples are loaded from per-anchor text files (one sample per line, one
// column per anchor) recorded by a ranging capture run.
package calib
