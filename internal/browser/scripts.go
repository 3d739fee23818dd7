package browser

import (
	"encoding/json"
	"fmt"

	"github.com/lance13c/stateshot/internal/suite"
)

// layoutScript measures the capture area and the ignored regions in
// document coordinates. Elements with no box are not part of the area.
const layoutScript = `(function(capture, ignore) {
	function rectOf(el) {
		var r = el.getBoundingClientRect();
		return {x: r.left + window.scrollX, y: r.top + window.scrollY, w: r.width, h: r.height};
	}
	var x1 = Infinity, y1 = Infinity, x2 = -Infinity, y2 = -Infinity, found = false;
	capture.forEach(function(sel) {
		document.querySelectorAll(sel).forEach(function(el) {
			var r = rectOf(el);
			if (r.w <= 0 || r.h <= 0) return;
			found = true;
			x1 = Math.min(x1, r.x); y1 = Math.min(y1, r.y);
			x2 = Math.max(x2, r.x + r.w); y2 = Math.max(y2, r.y + r.h);
		});
	});
	if (!found) return {area: null, ignore: [], missingIgnore: []};
	var ignored = [], missing = [];
	ignore.forEach(function(rule) {
		var els = rule.every ? Array.prototype.slice.call(document.querySelectorAll(rule.selector))
			: [document.querySelector(rule.selector)].filter(Boolean);
		if (!els.length) { missing.push(rule.selector); return; }
		els.forEach(function(el) { ignored.push(rectOf(el)); });
	});
	return {area: {x: x1, y: y1, w: x2 - x1, h: y2 - y1}, ignore: ignored, missingIgnore: missing};
})(%s, %s)`

const visibleScript = `(function(sel) {
	var el = document.querySelector(sel);
	if (!el) return false;
	var r = el.getBoundingClientRect(), st = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && st.visibility !== 'hidden' && st.display !== 'none';
})(%s)`

const orientationScript = `(function() {
	if (screen.orientation && screen.orientation.type) return screen.orientation.type.indexOf('landscape') === 0;
	return window.innerWidth > window.innerHeight;
})()`

type captureLayout struct {
	Area          *pageRect  `json:"area"`
	Ignore        []pageRect `json:"ignore"`
	MissingIgnore []string   `json:"missingIgnore"`
}

type ignoreArg struct {
	Selector string `json:"selector"`
	Every    bool   `json:"every"`
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func layoutExpr(capture []string, ignore []suite.IgnoreRule) string {
	args := make([]ignoreArg, len(ignore))
	for i, r := range ignore {
		args[i] = ignoreArg{Selector: r.Selector, Every: r.MatchAll}
	}
	c, _ := json.Marshal(capture)
	ig, _ := json.Marshal(args)
	return fmt.Sprintf(layoutScript, c, ig)
}

func visibleExpr(selector string) string {
	return fmt.Sprintf(visibleScript, jsString(selector))
}

func hiddenExpr(selector string) string {
	return "!" + visibleExpr(selector)
}

func conditionExpr(script string) string {
	return "!!(" + script + ")"
}
