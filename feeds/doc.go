// Package feeds ingests energy meter readings.
//
// Meters push CSV documents with one (datastream,current_value) record per
// line to PUT /v2/feeds/{id}.csv. The last record of a document becomes the
// current value of the feed. Feeds are registered through the northbound
// API; readings for unknown feeds are rejected with 404. The endpoint is
// unauthenticated.
package feeds
