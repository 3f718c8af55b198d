package browser

import (
	"context"
	"fmt"
	"strings"
)

// Link is an anchor discovered on the page.
type Link struct {
	Text     string `json:"text"`
	Href     string `json:"href"`
	Internal bool   `json:"internal"`
}

// PageInfo is a compact summary of the current document.
type PageInfo struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	LinkCount int    `json:"link_count"`
	FormCount int    `json:"form_count"`
	TextSize  int    `json:"text_size"`
}

// ExtractText returns visible text. With an empty selector the whole
// document body is read; otherwise the first match's text.
func (s *Session) ExtractText(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		res, err := s.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ''`)
		if err != nil {
			return "", fmt.Errorf("extract body text: %w", err)
		}
		s.touch()
		return res.Value.Str(), nil
	}

	el, err := s.Find(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("text of %q: %w", selector, err)
	}
	return text, nil
}

// ExtractLinks collects anchors with hrefs, classifying them as internal
// or external relative to the current origin.
func (s *Session) ExtractLinks(ctx context.Context) ([]Link, error) {
	js := `() => {
		const origin = location.origin;
		return Array.from(document.querySelectorAll('a[href]')).map(a => {
			let internal = false;
			try { internal = new URL(a.href, origin).origin === origin; } catch (e) {}
			return {
				text: (a.innerText || '').trim().substring(0, 200),
				href: a.href,
				internal: internal,
			};
		}).filter(l => l.href);
	}`

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}

	raw, ok := res.Value.Val().([]interface{})
	if !ok {
		return nil, fmt.Errorf("extract links: unexpected result shape")
	}

	links := make([]Link, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		link := Link{}
		if v, ok := m["text"].(string); ok {
			link.Text = strings.TrimSpace(v)
		}
		if v, ok := m["href"].(string); ok {
			link.Href = v
		}
		if v, ok := m["internal"].(bool); ok {
			link.Internal = v
		}
		if link.Href != "" {
			links = append(links, link)
		}
	}

	s.touch()
	return links, nil
}

// Image is an img element discovered on the page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// ExtractImages collects image sources with their alt text.
func (s *Session) ExtractImages(ctx context.Context) ([]Image, error) {
	js := `() => Array.from(document.querySelectorAll('img[src]')).map(img => ({
		src: img.src,
		alt: img.alt || '',
	})).filter(i => i.src)`

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	raw, ok := res.Value.Val().([]interface{})
	if !ok {
		return nil, fmt.Errorf("extract images: unexpected result shape")
	}

	images := make([]Image, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		img := Image{}
		if v, ok := m["src"].(string); ok {
			img.Src = v
		}
		if v, ok := m["alt"].(string); ok {
			img.Alt = v
		}
		if img.Src != "" {
			images = append(images, img)
		}
	}

	s.touch()
	return images, nil
}

// Table is the cell matrix of one HTML table.
type Table struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows"`
}

// ExtractTables reads every table on the page into header and row
// string matrices.
func (s *Session) ExtractTables(ctx context.Context) ([]Table, error) {
	js := `() => Array.from(document.querySelectorAll('table')).map(t => {
		const headers = Array.from(t.querySelectorAll('th')).map(th => th.innerText.trim());
		const rows = Array.from(t.querySelectorAll('tr'))
			.map(tr => Array.from(tr.querySelectorAll('td')).map(td => td.innerText.trim()))
			.filter(r => r.length > 0);
		return { headers: headers, rows: rows };
	})`

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("extract tables: %w", err)
	}

	raw, ok := res.Value.Val().([]interface{})
	if !ok {
		return nil, fmt.Errorf("extract tables: unexpected result shape")
	}

	tables := make([]Table, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		table := Table{}
		if hs, ok := m["headers"].([]interface{}); ok {
			for _, h := range hs {
				if s, ok := h.(string); ok {
					table.Headers = append(table.Headers, s)
				}
			}
		}
		if rs, ok := m["rows"].([]interface{}); ok {
			for _, r := range rs {
				cells, ok := r.([]interface{})
				if !ok {
					continue
				}
				row := make([]string, 0, len(cells))
				for _, c := range cells {
					if s, ok := c.(string); ok {
						row = append(row, s)
					}
				}
				table.Rows = append(table.Rows, row)
			}
		}
		tables = append(tables, table)
	}

	s.touch()
	return tables, nil
}

// ExtractAttributes returns every attribute of the first match as a
// name to value map.
func (s *Session) ExtractAttributes(ctx context.Context, selector string) (map[string]string, error) {
	js := fmt.Sprintf(`() => {
		const el = document.querySelector('%s');
		if (!el) return null;
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		return attrs;
	}`, EscapeJSString(selector))

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("extract attributes: %w", err)
	}

	raw, ok := res.Value.Val().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("extract attributes: no element matches %q", selector)
	}

	attrs := make(map[string]string, len(raw))
	for name, val := range raw {
		if v, ok := val.(string); ok {
			attrs[name] = v
		}
	}

	s.touch()
	return attrs, nil
}

// FormField is one input, select or textarea inside a form.
type FormField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
	Required bool   `json:"required"`
}

// Form is the structure of one HTML form.
type Form struct {
	Action string      `json:"action,omitempty"`
	Method string      `json:"method"`
	Fields []FormField `json:"fields"`
}

// ExtractForm reads the action, method and field list of the first form
// matching the selector. An empty selector picks the first form on the
// page.
func (s *Session) ExtractForm(ctx context.Context, selector string) (*Form, error) {
	if selector == "" {
		selector = "form"
	}
	js := fmt.Sprintf(`() => {
		const form = document.querySelector('%s');
		if (!form) return null;
		const fields = Array.from(form.querySelectorAll('input, select, textarea')).map(f => ({
			name: f.name || f.id || '',
			type: f.type || f.tagName.toLowerCase(),
			value: f.type === 'password' ? '' : (f.value || ''),
			required: !!f.required,
		}));
		return {
			action: form.action || '',
			method: (form.method || 'get').toLowerCase(),
			fields: fields,
		};
	}`, EscapeJSString(selector))

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("extract form: %w", err)
	}

	m, ok := res.Value.Val().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("extract form: no form matches %q", selector)
	}

	form := &Form{}
	if v, ok := m["action"].(string); ok {
		form.Action = v
	}
	if v, ok := m["method"].(string); ok {
		form.Method = v
	}
	if fs, ok := m["fields"].([]interface{}); ok {
		for _, item := range fs {
			fm, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			field := FormField{}
			if v, ok := fm["name"].(string); ok {
				field.Name = v
			}
			if v, ok := fm["type"].(string); ok {
				field.Type = v
			}
			if v, ok := fm["value"].(string); ok {
				field.Value = v
			}
			if v, ok := fm["required"].(bool); ok {
				field.Required = v
			}
			form.Fields = append(form.Fields, field)
		}
	}

	s.touch()
	return form, nil
}

// ElementDetails describes one element: identity, text, attributes and
// layout.
type ElementDetails struct {
	Tag        string            `json:"tag"`
	ID         string            `json:"id,omitempty"`
	Classes    []string          `json:"classes,omitempty"`
	Text       string            `json:"text,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Visible    bool              `json:"visible"`
	X          float64           `json:"x"`
	Y          float64           `json:"y"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
}

// ElementInfo inspects the first match and reports its tag, text,
// attributes, visibility and bounding box.
func (s *Session) ElementInfo(ctx context.Context, selector string) (*ElementDetails, error) {
	js := fmt.Sprintf(`() => {
		const el = document.querySelector('%s');
		if (!el) return null;
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		return {
			tag: el.tagName.toLowerCase(),
			id: el.id || '',
			classes: Array.from(el.classList),
			text: (el.innerText || '').trim().substring(0, 500),
			attributes: attrs,
			visible: rect.width > 0 && rect.height > 0 &&
				style.display !== 'none' && style.visibility !== 'hidden',
			x: rect.x, y: rect.y, width: rect.width, height: rect.height,
		};
	}`, EscapeJSString(selector))

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("element info: %w", err)
	}

	m, ok := res.Value.Val().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("element info: no element matches %q", selector)
	}

	info := &ElementDetails{}
	if v, ok := m["tag"].(string); ok {
		info.Tag = v
	}
	if v, ok := m["id"].(string); ok {
		info.ID = v
	}
	if cs, ok := m["classes"].([]interface{}); ok {
		for _, c := range cs {
			if v, ok := c.(string); ok {
				info.Classes = append(info.Classes, v)
			}
		}
	}
	if v, ok := m["text"].(string); ok {
		info.Text = v
	}
	if am, ok := m["attributes"].(map[string]interface{}); ok {
		info.Attributes = make(map[string]string, len(am))
		for name, val := range am {
			if v, ok := val.(string); ok {
				info.Attributes[name] = v
			}
		}
	}
	if v, ok := m["visible"].(bool); ok {
		info.Visible = v
	}
	if v, ok := m["x"].(float64); ok {
		info.X = v
	}
	if v, ok := m["y"].(float64); ok {
		info.Y = v
	}
	if v, ok := m["width"].(float64); ok {
		info.Width = v
	}
	if v, ok := m["height"].(float64); ok {
		info.Height = v
	}

	s.touch()
	return info, nil
}

// ExtractTitle returns the document title.
func (s *Session) ExtractTitle(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("extract title: %w", err)
	}
	s.touch()
	return res.Value.Str(), nil
}

// ExtractPageInfo returns a structural summary of the current document.
func (s *Session) ExtractPageInfo(ctx context.Context) (*PageInfo, error) {
	js := `() => ({
		url: location.href,
		title: document.title,
		link_count: document.querySelectorAll('a[href]').length,
		form_count: document.querySelectorAll('form').length,
		text_size: document.body ? document.body.innerText.length : 0,
	})`

	res, err := s.page.Context(ctx).Eval(js)
	if err != nil {
		return nil, fmt.Errorf("extract page info: %w", err)
	}

	m, ok := res.Value.Val().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("extract page info: unexpected result shape")
	}

	info := &PageInfo{}
	if v, ok := m["url"].(string); ok {
		info.URL = v
	}
	if v, ok := m["title"].(string); ok {
		info.Title = v
	}
	if v, ok := m["link_count"].(float64); ok {
		info.LinkCount = int(v)
	}
	if v, ok := m["form_count"].(float64); ok {
		info.FormCount = int(v)
	}
	if v, ok := m["text_size"].(float64); ok {
		info.TextSize = int(v)
	}

	s.touch()
	return info, nil
}
