// Package crawler holds the domain model shared by every stage of the curation pipeline:
// content packages and their analysis, the category and tool vocabularies, URL
// normalization, tagged errors, and the narrow interfaces for storage, publishing, and time.
package crawler
