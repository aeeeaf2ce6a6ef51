package depgraph

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	hostingDomainConstant                      = "github.com"
	selfReferenceValueConstant                 = "../.."
	organizationCaptureGroupNameConstant       = "organization"
	repositoryCaptureGroupNameConstant         = "repository"
	revisionCaptureGroupNameConstant           = "revision"
	unparsableReferenceMessageTemplateConstant = "source reference %q names %s but matches no supported shape"
)

var (
	sourceAttributeExpression      = regexp.MustCompile(`(?i)source\s*=\s*"(.+)"`)
	hostedHTTPSReferenceExpression = regexp.MustCompile(`^(?:git::)?(?:https?://)?github\.com/(?P<organization>[^/]+)/(?P<repository>[^/?]+?)(?:\.git)?(?:\?ref=(?P<revision>.+))?$`)
	hostedSSHReferenceExpression   = regexp.MustCompile(`^[\w.-]+@github\.com:(?P<organization>[^/]+)/(?P<repository>[^/?]+?)(?:\.git)?(?:\?ref=(?P<revision>.+))?$`)
)

// ReferenceKind distinguishes hosted references from external ones.
type ReferenceKind string

// Reference kind enumerations.
const (
	ReferenceKindHosted   ReferenceKind = "hosted"
	ReferenceKindExternal ReferenceKind = "external"
)

// SourceReference is one declared module source, classified.
type SourceReference struct {
	Kind         ReferenceKind
	Organization string
	Repository   string
	Revision     string
	Raw          string
}

// UnparsableReferenceError indicates a source string names the hosting domain
// without matching any supported URL shape.
type UnparsableReferenceError struct {
	Reference string
}

// Error describes the unparsable reference.
func (referenceError UnparsableReferenceError) Error() string {
	return fmt.Sprintf(unparsableReferenceMessageTemplateConstant, referenceError.Reference, hostingDomainConstant)
}

// ParseSourceReference classifies a single declared source value.
func ParseSourceReference(sourceValue string) (SourceReference, error) {
	trimmedValue := strings.TrimSpace(sourceValue)

	if hostedMatch := hostedHTTPSReferenceExpression.FindStringSubmatch(trimmedValue); hostedMatch != nil {
		return hostedReferenceFromMatch(hostedHTTPSReferenceExpression, hostedMatch, trimmedValue), nil
	}
	if hostedMatch := hostedSSHReferenceExpression.FindStringSubmatch(trimmedValue); hostedMatch != nil {
		return hostedReferenceFromMatch(hostedSSHReferenceExpression, hostedMatch, trimmedValue), nil
	}
	if strings.Contains(trimmedValue, hostingDomainConstant) {
		return SourceReference{}, UnparsableReferenceError{Reference: trimmedValue}
	}

	return SourceReference{Kind: ReferenceKindExternal, Raw: trimmedValue}, nil
}

// ExtractSourceReferences scans configuration text for source attributes and
// returns the classified references in declaration order. References equal to
// the module self reference are filtered out. Unparsable hosted references are
// reported through the joined error while well formed references are still
// returned.
func ExtractSourceReferences(configurationText string) ([]SourceReference, error) {
	var references []SourceReference
	var parseFailures []error

	for _, attributeMatch := range sourceAttributeExpression.FindAllStringSubmatch(configurationText, -1) {
		sourceValue := strings.TrimSpace(attributeMatch[1])
		if sourceValue == selfReferenceValueConstant {
			continue
		}
		reference, parseError := ParseSourceReference(sourceValue)
		if parseError != nil {
			parseFailures = append(parseFailures, parseError)
			continue
		}
		references = append(references, reference)
	}

	return references, errors.Join(parseFailures...)
}

func hostedReferenceFromMatch(expression *regexp.Regexp, match []string, rawValue string) SourceReference {
	return SourceReference{
		Kind:         ReferenceKindHosted,
		Organization: namedCaptureValue(expression, match, organizationCaptureGroupNameConstant),
		Repository:   namedCaptureValue(expression, match, repositoryCaptureGroupNameConstant),
		Revision:     namedCaptureValue(expression, match, revisionCaptureGroupNameConstant),
		Raw:          rawValue,
	}
}

func namedCaptureValue(expression *regexp.Regexp, match []string, groupName string) string {
	groupIndex := expression.SubexpIndex(groupName)
	if groupIndex < 0 || groupIndex >= len(match) {
		return ""
	}
	return match[groupIndex]
}
