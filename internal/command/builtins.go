package command

// Builtins returns the standard command catalog. Fallback ladders are
// ordered; the executor walks them front to back.
func Builtins() []Command {
	return []Command{
		navigateToURL(),
		clickElement(),
		inputText(),
		clearInput(),
		pressKey(),
		focusElement(),
		hoverElement(),
		selectOption(),
		waitForElement(),
		waitForCondition(),
		extractText(),
		extractLinks(),
		extractImages(),
		extractTables(),
		extractAttributes(),
		extractForm(),
		getElementInfo(),
		takeScreenshot(),
		analyzePage(),
		scrollPage(),
		goBack(),
		refreshPage(),
	}
}

func navigateToURL() Command {
	return NewCommand("navigate_to_url", CategoryNavigation).
		Description("Navigate the browser to a URL and wait for the page to settle").
		Parameter(ParameterSpec{Name: "url", Type: ParamURL, Required: true, Inferable: true}).
		Parameter(ParameterSpec{Name: "new_tab", Type: ParamBoolean, Default: false}).
		SuccessCriterion(SuccessCriterion{Kind: CritPageNavigated}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 3}).
		Fallback(Fallback{Kind: FallbackRefreshAndRetry}).
		Tags("navigate", "open", "visit", "go", "url", "browse").
		Complexity(0.2).
		TypicalDuration(3000).
		ModifiesState().
		Build()
}

func clickElement() Command {
	return NewCommand("click_element", CategoryInteraction).
		Description("Click an element identified by a CSS selector").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		Precondition(Precondition{Kind: PreElementExists}).
		Precondition(Precondition{Kind: PreElementClickable}).
		SuccessCriterion(SuccessCriterion{Kind: CritElementClicked}).
		Fallback(Fallback{Kind: FallbackScrollToElement}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 3}).
		Fallback(Fallback{Kind: FallbackUseJavaScript}).
		Fallback(Fallback{Kind: FallbackVisualDetection}).
		Fallback(Fallback{Kind: FallbackClickParentElement}).
		Tags("click", "press", "tap", "button", "select", "choose").
		Complexity(0.3).
		TypicalDuration(1000).
		ModifiesState().
		RequiresInteraction().
		Build()
}

func inputText() Command {
	return NewCommand("input_text", CategoryInteraction).
		Description("Type text into an input field identified by a CSS selector").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Parameter(ParameterSpec{Name: "text", Type: ParamString, Required: true, Inferable: true}).
		Parameter(ParameterSpec{Name: "clear_first", Type: ParamBoolean, Default: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		Precondition(Precondition{Kind: PreElementExists}).
		Precondition(Precondition{Kind: PreElementVisible}).
		SuccessCriterion(SuccessCriterion{Kind: CritTextEntered}).
		Fallback(Fallback{Kind: FallbackClearAndType}).
		Fallback(Fallback{Kind: FallbackUseJavaScript}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("type", "enter", "input", "fill", "write", "text").
		Complexity(0.3).
		TypicalDuration(1500).
		ModifiesState().
		RequiresInteraction().
		Build()
}

func clearInput() Command {
	return NewCommand("clear_input", CategoryInteraction).
		Description("Clear the value of an input field").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Precondition(Precondition{Kind: PreElementExists}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Fallback(Fallback{Kind: FallbackUseJavaScript}).
		Tags("clear", "empty", "reset", "input").
		Complexity(0.2).
		TypicalDuration(500).
		ModifiesState().
		RequiresInteraction().
		Build()
}

func pressKey() Command {
	return NewCommand("press_key", CategoryInteraction).
		Description("Press a keyboard key such as Enter or Tab").
		Parameter(ParameterSpec{Name: "key", Type: ParamKeySequence, Required: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Tags("press", "key", "keyboard", "enter", "submit").
		Complexity(0.2).
		TypicalDuration(300).
		ModifiesState().
		RequiresInteraction().
		Build()
}

func focusElement() Command {
	return NewCommand("focus_element", CategoryInteraction).
		Description("Move keyboard focus to an element identified by a CSS selector").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		Precondition(Precondition{Kind: PreElementExists}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Fallback(Fallback{Kind: FallbackScrollToElement}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("focus", "activate", "field", "input").
		Complexity(0.2).
		TypicalDuration(500).
		ModifiesState().
		RequiresInteraction().
		Build()
}

func hoverElement() Command {
	return NewCommand("hover_element", CategoryInteraction).
		Description("Hover the pointer over an element to trigger its mouseover behavior").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		Precondition(Precondition{Kind: PreElementExists}).
		Precondition(Precondition{Kind: PreElementVisible}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Fallback(Fallback{Kind: FallbackScrollToElement}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("hover", "mouseover", "menu", "tooltip", "dropdown").
		Complexity(0.2).
		TypicalDuration(500).
		RequiresInteraction().
		Build()
}

func selectOption() Command {
	return NewCommand("select_option", CategoryInteraction).
		Description("Pick an option in a select element by value or visible label").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Parameter(ParameterSpec{Name: "value", Type: ParamString, Required: true, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		Precondition(Precondition{Kind: PreElementExists}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("select", "option", "dropdown", "choose", "pick").
		Complexity(0.3).
		TypicalDuration(800).
		ModifiesState().
		RequiresInteraction().
		Build()
}

func waitForElement() Command {
	return NewCommand("wait_for_element", CategoryValidation).
		Description("Wait until an element matching a CSS selector appears").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Parameter(ParameterSpec{Name: "timeout_ms", Type: ParamDuration, Default: int64(10000), Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritElementFound}).
		Fallback(Fallback{Kind: FallbackRefreshAndRetry}).
		Tags("wait", "appear", "until", "present", "load").
		Complexity(0.2).
		TypicalDuration(2000).
		Build()
}

func waitForCondition() Command {
	return NewCommand("wait_for_condition", CategoryValidation).
		Description("Wait until a JavaScript expression evaluates truthy in the page").
		Parameter(ParameterSpec{Name: "expression", Type: ParamString, Required: true}).
		Parameter(ParameterSpec{Name: "timeout_ms", Type: ParamDuration, Default: int64(10000), Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Tags("wait", "condition", "until", "javascript", "ready").
		Complexity(0.3).
		TypicalDuration(2000).
		Build()
}

func extractText() Command {
	return NewCommand("extract_text", CategoryExtraction).
		Description("Extract visible text from the page or a selected element").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritValueExtracted}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Fallback(Fallback{Kind: FallbackUseJavaScript}).
		Tags("extract", "text", "read", "content", "scrape").
		Complexity(0.3).
		TypicalDuration(1000).
		Build()
}

func extractLinks() Command {
	return NewCommand("extract_links", CategoryExtraction).
		Description("Collect hyperlinks from the page with internal/external classification").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritValueExtracted}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Fallback(Fallback{Kind: FallbackUseJavaScript}).
		Tags("extract", "links", "hyperlinks", "urls", "anchors").
		Complexity(0.3).
		TypicalDuration(1000).
		Build()
}

func extractImages() Command {
	return NewCommand("extract_images", CategoryExtraction).
		Description("Collect image sources and alt text from the page").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritValueExtracted}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("extract", "images", "pictures", "media").
		Complexity(0.3).
		TypicalDuration(1000).
		Build()
}

func extractTables() Command {
	return NewCommand("extract_tables", CategoryExtraction).
		Description("Extract tabular data from HTML tables on the page").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritValueExtracted}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("extract", "table", "tables", "rows", "data").
		Complexity(0.4).
		TypicalDuration(1500).
		Build()
}

func extractAttributes() Command {
	return NewCommand("extract_attributes", CategoryExtraction).
		Description("Read every attribute of the first element matching a CSS selector").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		Precondition(Precondition{Kind: PreElementExists}).
		SuccessCriterion(SuccessCriterion{Kind: CritValueExtracted}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("extract", "attributes", "attribute", "properties").
		Complexity(0.3).
		TypicalDuration(800).
		Build()
}

func extractForm() Command {
	return NewCommand("extract_form", CategoryExtraction).
		Description("Read the action, method and field structure of a form").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritValueExtracted}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("extract", "form", "fields", "inputs").
		Complexity(0.4).
		TypicalDuration(1000).
		Build()
}

func getElementInfo() Command {
	return NewCommand("get_element_info", CategoryExtraction).
		Description("Inspect an element's tag, text, attributes, visibility and bounding box").
		Parameter(ParameterSpec{Name: "selector", Type: ParamSelector, Required: true, Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		Precondition(Precondition{Kind: PreElementExists}).
		SuccessCriterion(SuccessCriterion{Kind: CritValueExtracted}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("element", "info", "inspect", "details", "position").
		Complexity(0.3).
		TypicalDuration(800).
		Build()
}

func takeScreenshot() Command {
	return NewCommand("take_screenshot", CategoryPageManagement).
		Description("Capture a screenshot of the current page").
		Parameter(ParameterSpec{Name: "full_page", Type: ParamBoolean, Default: false}).
		Parameter(ParameterSpec{Name: "format", Type: ParamString, Default: "png",
			Validations: []Validation{{Kind: ValidateOneOf, OneOf: []string{"png", "jpeg"}}}}).
		Parameter(ParameterSpec{Name: "quality", Type: ParamInteger, Default: int64(90),
			Validations: []Validation{{Kind: ValidateRange, Min: 1, Max: 100}}}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritScreenshotTaken}).
		Fallback(Fallback{Kind: FallbackWaitAndRetry, Attempts: 2}).
		Tags("screenshot", "capture", "snapshot", "image", "picture").
		Complexity(0.2).
		TypicalDuration(1500).
		Build()
}

func analyzePage() Command {
	return NewCommand("analyze_page", CategoryExtraction).
		Description("Survey the page structure and report key interactive elements").
		Parameter(ParameterSpec{Name: "mode", Type: ParamString, Default: "standard",
			Validations: []Validation{{Kind: ValidateOneOf, OneOf: []string{"quick", "standard", "deep"}}}}).
		Parameter(ParameterSpec{Name: "find_search", Type: ParamBoolean, Default: false}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Tags("analyze", "inspect", "survey", "structure", "page").
		Complexity(0.4).
		TypicalDuration(2000).
		Build()
}

func scrollPage() Command {
	return NewCommand("scroll_page", CategoryPageManagement).
		Description("Scroll the page vertically by a pixel amount").
		Parameter(ParameterSpec{Name: "pixels", Type: ParamInteger, Default: int64(600), Inferable: true}).
		Precondition(Precondition{Kind: PrePageLoaded}).
		SuccessCriterion(SuccessCriterion{Kind: CritNoErrors}).
		Tags("scroll", "down", "up", "page").
		Complexity(0.1).
		TypicalDuration(500).
		ModifiesState().
		Build()
}

func goBack() Command {
	return NewCommand("go_back", CategoryNavigation).
		Description("Navigate back in browser history").
		SuccessCriterion(SuccessCriterion{Kind: CritPageNavigated}).
		Tags("back", "previous", "return", "history").
		Complexity(0.1).
		TypicalDuration(1500).
		ModifiesState().
		Build()
}

func refreshPage() Command {
	return NewCommand("refresh_page", CategoryNavigation).
		Description("Reload the current page").
		SuccessCriterion(SuccessCriterion{Kind: CritPageNavigated}).
		Tags("refresh", "reload", "page").
		Complexity(0.1).
		TypicalDuration(2000).
		ModifiesState().
		Build()
}
