package lifecycle

import "log"

// LogNotifier writes lifecycle events to the standard logger
type LogNotifier struct{}

func (LogNotifier) NewIssue(row Row) {
	log.Printf("New issue %s on %s [%s, confidence=%.2f]: %s",
		row.RuleID, row.Component, row.Severity, row.Confidence, row.Reason)
}

func (LogNotifier) Critical(row Row) {
	log.Printf("CRITICAL issue %s on %s: %s", row.RuleID, row.Component, row.Reason)
}

func (LogNotifier) Resolved(row Row) {
	log.Printf("Resolved issue %s on %s", row.RuleID, row.Component)
}

// multiNotifier fans events out to several notifiers
type multiNotifier []Notifier

func (m multiNotifier) NewIssue(row Row) {
	for _, n := range m {
		n.NewIssue(row)
	}
}

func (m multiNotifier) Critical(row Row) {
	for _, n := range m {
		n.Critical(row)
	}
}

func (m multiNotifier) Resolved(row Row) {
	for _, n := range m {
		n.Resolved(row)
	}
}

// Notifiers combines notifiers into one
func Notifiers(ns ...Notifier) Notifier {
	return multiNotifier(ns)
}
