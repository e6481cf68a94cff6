// trialkit is a toolkit for pulling clinical-trial records out of the
// ClinicalTrials.gov API and turning them into a chain of derived datasets for
// competitor analysis. It contains the shared data model along with the
// interfaces for logging and stats used by the sub-packages.
//
// The pieces, from the bottom up:
//
// 1. Records and Datasets
//
//    A trialkit.Record is a single study as a mapping from field name to
//    string value. Multi-valued fields (Conditions, Phases, Interventions,
//    Locations...) are stored as one string joined with MultiDelimiter, and
//    SplitMulti/Dataset.Explode are the only ways stages take them apart. A
//    Dataset is an ordered header plus rows; it is the unit that gets cached
//    and handed from one derivation stage to the next.
//
// 2. ctgov
//
//    The API client. It validates requested fields against the field catalog,
//    then pages through the studies endpoint in either the tabular (CSV) or
//    structured (JSON) format. The two formats locate the continuation token
//    in different places (response header vs body) so each Format carries its
//    own decoder.
//
// 3. cache
//
//    A keyed artifact store with Exists/Load/Save. The default keeps one CSV
//    per dataset in a directory; the boltdb, leveldb, aws/s3 and redis
//    sub-packages provide other places to keep the same bytes.
//
// 4. pipeline and competitors
//
//    pipeline resolves a named dataset by walking its declared dependencies,
//    loading whatever is cached and computing only what is missing.
//    competitors defines the actual stages: the five-year base dataset,
//    conditions of interest, competitor sponsors, competitor trials, the
//    per-condition grouping, the geographic breakdown, and a few report
//    tables built on top of those.
package trialkit
