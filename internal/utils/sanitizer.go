package utils

import (
	"regexp"

	"github.com/flowscribe-dev/flowscribe/internal/models"
)

// httpURLPattern matches plain-HTTP URLs including an optional path and
// query part. Already-secure URLs do not match, so rewriting is idempotent.
var httpURLPattern = regexp.MustCompile(`(?i)http://([\w\-.]+(?:/[\w\-./?%&=]*)?)`)

// SanitizeHTTPToHTTPS rewrites every http:// URL in text to https://.
func SanitizeHTTPToHTTPS(text string) string {
	return httpURLPattern.ReplaceAllString(text, "https://$1")
}

// SanitizeFlowNodes rewrites URLs in all text fields of nodes in place and
// returns the same slice.
func SanitizeFlowNodes(nodes []models.FlowNode) []models.FlowNode {
	for i := range nodes {
		nodes[i].Text = SanitizeHTTPToHTTPS(nodes[i].Text)
		nodes[i].Actor = SanitizeHTTPToHTTPS(nodes[i].Actor)
		nodes[i].Step = SanitizeHTTPToHTTPS(nodes[i].Step)
	}
	return nodes
}

// SanitizeFlowEdges rewrites URLs in edge conditions in place and returns
// the same slice.
func SanitizeFlowEdges(edges []models.FlowEdge) []models.FlowEdge {
	for i := range edges {
		edges[i].Condition = SanitizeHTTPToHTTPS(edges[i].Condition)
	}
	return edges
}
