// Package synth turns recorded sessions and page objects into Playwright
// TypeScript source. Output is deterministic for a given input: elements are
// emitted in page-object order and steps in recorded order.
package synth

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
	"github.com/xkilldash9x/pagesmith/internal/config"
)

const defaultIndent = "  "

// Generator emits test and page-object source text. It never touches the
// filesystem; callers hand the returned strings to an artifact sink.
type Generator struct {
	logger *zap.Logger
	cfg    config.SynthConfig
}

func New(logger *zap.Logger, cfg config.SynthConfig) *Generator {
	if cfg.Indent == "" {
		cfg.Indent = defaultIndent
	}
	return &Generator{
		logger: logger.Named("synth"),
		cfg:    cfg,
	}
}

// GeneratePageObject emits the companion class for a page object: one locator
// field per element, a constructor wiring each to its primary selector, a
// navigate() bound to the page URL, and action methods keyed by element type.
func (g *Generator) GeneratePageObject(pom *schemas.PageObject) string {
	ind := g.cfg.Indent
	var b strings.Builder

	b.WriteString("import { Page, Locator } from '@playwright/test';\n\n")
	fmt.Fprintf(&b, "export class %s {\n", pom.Name)
	fmt.Fprintf(&b, "%sreadonly page: Page;\n", ind)
	for _, el := range pom.Elements {
		fmt.Fprintf(&b, "%sreadonly %s: Locator;\n", ind, el.Name)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%sconstructor(page: Page) {\n", ind)
	fmt.Fprintf(&b, "%s%sthis.page = page;\n", ind, ind)
	for _, el := range pom.Elements {
		fmt.Fprintf(&b, "%s%sthis.%s = page.locator(%s);\n",
			ind, ind, el.Name, tsString(el.PrimarySelector))
	}
	fmt.Fprintf(&b, "%s}\n", ind)

	b.WriteString("\n")
	fmt.Fprintf(&b, "%sasync navigate(): Promise<void> {\n", ind)
	fmt.Fprintf(&b, "%s%sawait this.page.goto(%s);\n", ind, ind, tsString(g.navigateURL(pom)))
	fmt.Fprintf(&b, "%s}\n", ind)

	for _, el := range pom.Elements {
		g.writeElementMethods(&b, el)
	}

	b.WriteString("}\n")
	return b.String()
}

func (g *Generator) writeElementMethods(b *strings.Builder, el schemas.ElementDescriptor) {
	ind := g.cfg.Indent
	suffix := upperFirst(el.Name)

	switch el.ElementType {
	case schemas.ElementInput:
		fmt.Fprintf(b, "\n%sasync fill%s(value: string): Promise<void> {\n", ind, suffix)
		fmt.Fprintf(b, "%s%sawait this.%s.fill(value);\n", ind, ind, el.Name)
		fmt.Fprintf(b, "%s}\n", ind)
		fmt.Fprintf(b, "\n%sasync get%sValue(): Promise<string> {\n", ind, suffix)
		fmt.Fprintf(b, "%s%sreturn await this.%s.inputValue();\n", ind, ind, el.Name)
		fmt.Fprintf(b, "%s}\n", ind)
	case schemas.ElementDropdown:
		fmt.Fprintf(b, "\n%sasync select%s(value: string): Promise<void> {\n", ind, suffix)
		fmt.Fprintf(b, "%s%sawait this.%s.selectOption(value);\n", ind, ind, el.Name)
		fmt.Fprintf(b, "%s}\n", ind)
	case schemas.ElementCheckbox, schemas.ElementRadio:
		fmt.Fprintf(b, "\n%sasync check%s(): Promise<void> {\n", ind, suffix)
		fmt.Fprintf(b, "%s%sawait this.%s.check();\n", ind, ind, el.Name)
		fmt.Fprintf(b, "%s}\n", ind)
		fmt.Fprintf(b, "\n%sasync uncheck%s(): Promise<void> {\n", ind, suffix)
		fmt.Fprintf(b, "%s%sawait this.%s.uncheck();\n", ind, ind, el.Name)
		fmt.Fprintf(b, "%s}\n", ind)
	default:
		// Buttons, links and anything else interactive get a click method.
		fmt.Fprintf(b, "\n%sasync click%s(): Promise<void> {\n", ind, suffix)
		fmt.Fprintf(b, "%s%sawait this.%s.click();\n", ind, ind, el.Name)
		fmt.Fprintf(b, "%s}\n", ind)
	}
}

func (g *Generator) navigateURL(pom *schemas.PageObject) string {
	if g.cfg.BaseURL != "" && !strings.Contains(pom.URL, "://") {
		return strings.TrimSuffix(g.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(pom.URL, "/")
	}
	return pom.URL
}

// GenerateTest emits one test from the recorded step sequence. Steps whose
// element id resolves in the page object call the generated class methods;
// everything else falls back to raw locators.
func (g *Generator) GenerateTest(steps []schemas.TestStep, pom *schemas.PageObject) string {
	ind := g.cfg.Indent
	var b strings.Builder

	b.WriteString("import { test, expect } from '@playwright/test';\n")
	instance := ""
	if pom != nil {
		instance = lowerFirst(pom.Name)
		fmt.Fprintf(&b, "import { %s } from './%s';\n", pom.Name, pom.Name)
	}

	fmt.Fprintf(&b, "\ntest(%s, async ({ page }) => {\n", tsString(testName(steps)))
	if pom != nil {
		fmt.Fprintf(&b, "%sconst %s = new %s(page);\n", ind, instance, pom.Name)
	}
	for _, step := range steps {
		g.writeStep(&b, step, pom, instance)
	}
	b.WriteString("});\n")
	return b.String()
}

func (g *Generator) writeStep(b *strings.Builder, step schemas.TestStep, pom *schemas.PageObject, instance string) {
	ind := g.cfg.Indent

	if step.Action == schemas.ActionNavigate {
		if pom != nil && step.Value == pom.URL {
			fmt.Fprintf(b, "%sawait %s.navigate();\n", ind, instance)
		} else {
			fmt.Fprintf(b, "%sawait page.goto(%s);\n", ind, tsString(step.Value))
		}
		return
	}

	if step.Action == schemas.ActionAssert && step.Assertion != nil {
		g.writeAssertion(b, step)
		return
	}

	var el *schemas.ElementDescriptor
	if pom != nil && step.ElementID != "" {
		el = pom.FindElementByID(step.ElementID)
	}
	if el != nil {
		g.writeMappedStep(b, step, el, instance)
		return
	}
	g.writeRawStep(b, step)
}

func (g *Generator) writeMappedStep(b *strings.Builder, step schemas.TestStep, el *schemas.ElementDescriptor, instance string) {
	ind := g.cfg.Indent
	suffix := upperFirst(el.Name)

	switch step.Action {
	case schemas.ActionClick:
		fmt.Fprintf(b, "%sawait %s.click%s();\n", ind, instance, suffix)
	case schemas.ActionFill:
		fmt.Fprintf(b, "%sawait %s.fill%s(%s);\n", ind, instance, suffix, tsString(step.Value))
	case schemas.ActionSelect:
		fmt.Fprintf(b, "%sawait %s.select%s(%s);\n", ind, instance, suffix, tsString(step.Value))
	case schemas.ActionCheck:
		fmt.Fprintf(b, "%sawait %s.check%s();\n", ind, instance, suffix)
	case schemas.ActionUncheck:
		fmt.Fprintf(b, "%sawait %s.uncheck%s();\n", ind, instance, suffix)
	case schemas.ActionHover:
		fmt.Fprintf(b, "%sawait %s.%s.hover();\n", ind, instance, el.Name)
	case schemas.ActionWait:
		fmt.Fprintf(b, "%sawait %s.%s.waitFor({ state: 'visible' });\n", ind, instance, el.Name)
	default:
		g.logger.Warn("Unhandled mapped step action", zap.String("action", string(step.Action)))
		g.writeRawStep(b, step)
	}
}

func (g *Generator) writeRawStep(b *strings.Builder, step schemas.TestStep) {
	ind := g.cfg.Indent
	loc := fmt.Sprintf("page.locator(%s)", tsString(step.Selector))

	switch step.Action {
	case schemas.ActionClick:
		fmt.Fprintf(b, "%sawait %s.click();\n", ind, loc)
	case schemas.ActionFill:
		fmt.Fprintf(b, "%sawait %s.fill(%s);\n", ind, loc, tsString(step.Value))
	case schemas.ActionSelect:
		fmt.Fprintf(b, "%sawait %s.selectOption(%s);\n", ind, loc, tsString(step.Value))
	case schemas.ActionCheck:
		fmt.Fprintf(b, "%sawait %s.check();\n", ind, loc)
	case schemas.ActionUncheck:
		fmt.Fprintf(b, "%sawait %s.uncheck();\n", ind, loc)
	case schemas.ActionHover:
		fmt.Fprintf(b, "%sawait %s.hover();\n", ind, loc)
	case schemas.ActionWait:
		fmt.Fprintf(b, "%sawait %s.waitFor({ state: 'visible' });\n", ind, loc)
	default:
		g.logger.Warn("Unhandled step action", zap.String("action", string(step.Action)))
	}
}

func (g *Generator) writeAssertion(b *strings.Builder, step schemas.TestStep) {
	ind := g.cfg.Indent
	a := step.Assertion
	loc := fmt.Sprintf("page.locator(%s)", tsString(step.Selector))

	switch a.Kind {
	case schemas.AssertVisible:
		fmt.Fprintf(b, "%sawait expect(%s).toBeVisible();\n", ind, loc)
	case schemas.AssertText:
		fmt.Fprintf(b, "%sawait expect(%s).toHaveText(%s);\n", ind, loc, tsString(a.Expected))
	case schemas.AssertValue:
		fmt.Fprintf(b, "%sawait expect(%s).toHaveValue(%s);\n", ind, loc, tsString(a.Expected))
	case schemas.AssertCount:
		n, err := strconv.Atoi(a.Expected)
		if err != nil {
			g.logger.Warn("Non-numeric count assertion", zap.String("expected", a.Expected))
			n = 0
		}
		fmt.Fprintf(b, "%sawait expect(%s).toHaveCount(%d);\n", ind, loc, n)
	case schemas.AssertURL:
		fmt.Fprintf(b, "%sawait expect(page).toHaveURL(%s);\n", ind, tsString(a.Expected))
	case schemas.AssertTitle:
		fmt.Fprintf(b, "%sawait expect(page).toHaveTitle(%s);\n", ind, tsString(a.Expected))
	default:
		g.logger.Warn("Unhandled assertion kind", zap.String("kind", string(a.Kind)))
	}
}

// testName derives a readable name from the first few recorded action kinds.
func testName(steps []schemas.TestStep) string {
	var kinds []string
	for _, step := range steps {
		kind := string(step.Action)
		if len(kinds) > 0 && kinds[len(kinds)-1] == kind {
			continue
		}
		kinds = append(kinds, kind)
		if len(kinds) == 3 {
			break
		}
	}
	if len(kinds) == 0 {
		return "recorded session"
	}
	return strings.Join(kinds, " and ")
}

// tsString renders a Go string as a single-quoted TypeScript literal.
func tsString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
