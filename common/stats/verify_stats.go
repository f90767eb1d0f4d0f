package stats

import (
	"bytes"
	"fmt"
	"testing"
)

/*
Utilities for validating the stats registry contents from tests.
*/
type RuleChecker struct {
	name    string
	checker func(got, expected interface{}) bool
}

func int64EqTest(got, expected interface{}) bool {
	if got == nil || expected == nil {
		return got == nil && expected == nil
	}
	gotInt, ok := got.(int64)
	if !ok {
		return false
	}
	return gotInt == int64(expected.(int))
}

var Int64EqTest = RuleChecker{name: "Int64EqTest", checker: int64EqTest}

func doesNotExistTest(got, expected interface{}) bool {
	return got == nil
}

var DoesNotExistTest = RuleChecker{name: "DoesNotExistTest", checker: doesNotExistTest}

// Rule pairs a checker with the expected value it is applied to.
type Rule struct {
	Checker RuleChecker
	Value   interface{}
}

/*
Verify that the registry holds values for the keys in contains and that each one
passes its rule. Only finagle registries are inspected.
*/
func VerifyStats(tag string, statsRegistry StatsRegistry, t *testing.T, contains map[string]Rule) {
	asFinagleRegistry, ok := statsRegistry.(*finagleStatsRegistry)
	if !ok {
		t.Errorf("%s: VerifyStats needs a finagle stats registry, got %T", tag, statsRegistry)
		return
	}

	failed := false
	var msg bytes.Buffer
	msg.WriteString(tag)
	msg.WriteString(":stats registry error:\n")

	asJson := asFinagleRegistry.MarshalAll()
	for key, rule := range contains {
		gotValue := asJson[key]
		if rule.Checker.checker(gotValue, rule.Value) {
			continue
		}
		failed = true
		if rule.Checker.name == DoesNotExistTest.name {
			msg.WriteString(fmt.Sprintf("%s: found stat entry when there should not be one\n", key))
		} else {
			msg.WriteString(fmt.Sprintf("%s: got %v, expected to pass %s with %v\n", key, gotValue, rule.Checker.name, rule.Value))
		}
	}
	if failed {
		regBytes, _ := asFinagleRegistry.MarshalJSONPretty()
		msg.Write(regBytes)
		t.Error(msg.String())
	}
}
