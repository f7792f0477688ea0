package extractor

import "github.com/xkilldash9x/pagesmith/api/schemas"

// SnapshotPayload is the envelope the in-page collector returns. The version
// field lets the driver reject a stale script whose record shape no longer
// matches schemas.ElementSnapshot.
type SnapshotPayload struct {
	Version  int                       `json:"version"`
	Elements []schemas.ElementSnapshot `json:"elements"`
}

// CollectorScript returns the JavaScript expression evaluated in the page to
// gather candidate interactive elements as plain records. The expression is
// self-contained and side-effect free; it never mutates the page.
func CollectorScript() string {
	return collectorScript
}

const collectorScript = `(() => {
	const result = [];
	const selectorList = 'button, a[href], input, textarea, select, [role="button"], [onclick]';
	const nodes = document.querySelectorAll(selectorList);
	const seen = new Set();
	let ordinal = 0;

	for (const el of nodes) {
		if (seen.has(el)) continue;
		seen.add(el);

		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 &&
			style.display !== 'none' && style.visibility !== 'hidden';

		const attributes = {};
		for (const attr of el.attributes) {
			attributes[attr.name] = attr.value;
		}

		let text = (el.innerText || el.textContent || '').trim();
		if (text.length > 200) {
			text = text.substring(0, 200);
		}

		result.push({
			tag: el.tagName.toLowerCase(),
			text: text,
			attributes: attributes,
			visible: visible,
			hasClickHandler: el.onclick !== null || el.hasAttribute('onclick'),
			width: rect.width,
			height: rect.height,
			ordinal: ordinal++
		});
	}

	return JSON.stringify({ version: ` + versionLiteral + `, elements: result });
})()`

// versionLiteral keeps the script's version stamp in lockstep with
// schemas.SnapshotVersion. Update both together.
const versionLiteral = "2"

// DescribeScript returns a JavaScript expression that snapshots the single
// node produced by nodeExpr as the same plain record the collector emits, or
// JSON null when nodeExpr yields nothing.
func DescribeScript(nodeExpr string) string {
	return `(() => {
	const el = ` + nodeExpr + `;
	if (!el) return "null";

	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	const visible = rect.width > 0 && rect.height > 0 &&
		style.display !== 'none' && style.visibility !== 'hidden';

	const attributes = {};
	for (const attr of el.attributes) {
		attributes[attr.name] = attr.value;
	}

	let text = (el.innerText || el.textContent || '').trim();
	if (text.length > 200) {
		text = text.substring(0, 200);
	}

	return JSON.stringify({
		tag: el.tagName.toLowerCase(),
		text: text,
		attributes: attributes,
		visible: visible,
		hasClickHandler: el.onclick !== null || el.hasAttribute('onclick'),
		width: rect.width,
		height: rect.height,
		ordinal: 0
	});
})()`
}
