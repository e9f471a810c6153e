// Package diffreport compares two versions of an analysis result and explains
// the difference to a human.
//
// A diff categorizes findings by identity key (kind, scene, line):
//
//	added      key only in after
//	resolved   key only in before
//	modified   key in both, severity, message or suggestion differs
//	unchanged  key in both, identical content
//
// The enhanced report adds a textual visual diff, rule-based recommendations
// and severity-weighted metrics. Reports are kept per ID in a bounded history
// for trend analysis.
package diffreport
