package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/scanner"
)

func parse(t *testing.T, markup string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(markup, "https://example.com/page")
	require.NoError(t, err)
	return d
}

func TestNonTextMissingAlt(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body><div><img src="a.png"></div></body></html>`)
	findings := scanNonText(context.Background(), d)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.StatusFail, findings[0].Verdict.Status)
	assert.Contains(t, findings[0].Verdict.Rules, "Rule 1.1 (Missing Alt)")
	assert.Equal(t, "IMG", findings[0].Element.TagName)
	assert.Equal(t, "https://example.com/a.png", findings[0].Element.Src)
}

func TestNonTextForbiddenWord(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body><p>오늘 날씨가 맑습니다</p><div><img src="cat.png" alt="고양이 사진"></div></body></html>`)
	findings := scanNonText(context.Background(), d)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.StatusRecommendFix, findings[0].Verdict.Status)
	assert.Contains(t, findings[0].Verdict.Message, "사진")
	assert.Equal(t, "고양이 사진", findings[0].Element.Alt)
}

func TestNonTextPrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		markup string
		status domain.Status
		rule   string
	}{
		{
			name:   "decorative image as only link content",
			markup: `<a href="/"><img src="home.png" alt=""></a>`,
			status: domain.StatusFail,
			rule:   "Rule 4.2 (Functional Decorative)",
		},
		{
			name:   "name repeats the surrounding text",
			markup: `<div>Seoul tower <img src="t.png" alt="Seoul tower"></div>`,
			status: domain.StatusInappropriate,
			rule:   "Rule 3.1 (High Similarity)",
		},
		{
			name:   "missing alt inside a link stays a failure",
			markup: `<a href="/"><img src="home.png"></a>`,
			status: domain.StatusFail,
			rule:   "Rule 1.1 (Missing Alt)",
		},
		{
			name:   "named image inside link needs review",
			markup: `<a href="/">Go <img src="home.png" alt="홈으로 이동"></a>`,
			status: domain.StatusNeedsReview,
			rule:   "Rule 4.1 (Functional Alt Check)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			findings := scanNonText(context.Background(), parse(t, "<html><body>"+tc.markup+"</body></html>"))
			require.Len(t, findings, 1)
			assert.Equal(t, tc.status, findings[0].Verdict.Status)
			assert.Contains(t, findings[0].Verdict.Rules, tc.rule)
		})
	}
}

func TestNonTextDecorativeWithLinkText(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body><a href="/">Home <img src="home.png" alt=""></a></body></html>`)
	findings := scanNonText(context.Background(), d)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, domain.StatusPass, f.Verdict.Status)
	assert.Contains(t, f.Verdict.Message, `"Home"`)
	assert.True(t, f.Context.IsFunctional)
	assert.True(t, f.Context.IsDecorative)
	assert.Equal(t, "a", f.Context.ParentTag)
}

func TestNonTextBackgroundImage(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<div style="background-image: url('hero.png')"></div>
		<span style="background-image: url(icon.svg)" aria-label="검색"></span>
	</body></html>`)
	findings := scanNonText(context.Background(), d)

	require.Len(t, findings, 2)
	assert.Equal(t, domain.StatusNeedsReview, findings[0].Verdict.Status)
	assert.Equal(t, "https://example.com/hero.png", findings[0].Element.Src)
	assert.Equal(t, domain.StatusPass, findings[1].Verdict.Status)
	assert.Equal(t, "검색", findings[1].Element.Alt)
}

func TestCaptions(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<div><video src="talk.mp4"></video></div>
		<div><video src="bg.mp4" muted autoplay></video></div>
		<div><video src="cc.mp4"><track kind="captions" src="cc.vtt"></video></div>
		<section><p>전체 대본 보기</p><audio src="a.mp3" controls></audio></section>
	</body></html>`)
	findings := scanCaptions(context.Background(), d)

	require.Len(t, findings, 4)
	assert.Equal(t, domain.StatusFail, findings[0].Verdict.Status)
	assert.Contains(t, findings[0].Verdict.Rules, "Rule 2.2 (Missing Captions)")
	assert.Equal(t, domain.StatusPass, findings[1].Verdict.Status)
	assert.Equal(t, domain.StatusNeedsReview, findings[2].Verdict.Status)
	assert.Contains(t, findings[2].Verdict.Rules, "Rule 2.1 (Track Detected)")
	assert.Equal(t, domain.StatusNeedsReview, findings[3].Verdict.Status)
	assert.Contains(t, findings[3].Verdict.Message, "대본")
}

func TestTableWithoutCaptionOrHeaders(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body><table><tr><td>1</td><td>2</td></tr></table></body></html>`)
	findings := scanTables(context.Background(), d)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, domain.StatusFail, f.Verdict.Status)
	assert.Contains(t, f.Verdict.Message, "<caption>")
	assert.Contains(t, f.Verdict.Message, "제목 셀")
	assert.Equal(t, []string{"Rule 1.1 (Missing Caption)", "Rule 2.1 (Missing Headers)"}, f.Verdict.Rules)
}

func TestTableStructure(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<table><caption>성적</caption><tr><th scope="col">이름</th></tr><tr><td>가</td></tr></table>
		<table aria-label="요금"><tr><th>요금</th></tr><tr><td>1</td></tr></table>
		<table role="presentation"><tr><td>layout</td></tr></table>
	</body></html>`)
	findings := scanTables(context.Background(), d)

	require.Len(t, findings, 2)
	assert.Equal(t, domain.StatusPass, findings[0].Verdict.Status)
	assert.Equal(t, domain.StatusRecommendFix, findings[1].Verdict.Status)
	assert.Contains(t, findings[1].Verdict.Rules, "Rule 2.2 (Missing Semantic Association)")
}

func TestContrast(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<p style="color: #777777; background-color: #ffffff">low</p>
		<p style="color: #000000">fine</p>
		<h1 style="color: #777777">large</h1>
		<span style="position:absolute; left:-9999px; color:#eeeeee">skip</span>
	</body></html>`)
	findings := scanContrast(context.Background(), d)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.StatusRecommendFix, findings[0].Verdict.Status)
	assert.Equal(t, "P", findings[0].Element.TagName)
	assert.Contains(t, findings[0].Verdict.Message, "4.48:1")
}

func TestKeyboard(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<div onclick="go()">open</div>
		<span onclick="go()" tabindex="0">focusable</span>
		<a href="/x" tabindex="3">jump</a>
		<div role="button" tabindex="0" onclick="go()" onkeydown="go()">ok</div>
	</body></html>`)
	findings := scanKeyboard(context.Background(), d)

	require.Len(t, findings, 4)
	assert.Equal(t, domain.StatusFail, findings[0].Verdict.Status)
	assert.Equal(t, domain.StatusRecommendFix, findings[1].Verdict.Status)
	assert.Equal(t, domain.StatusRecommendFix, findings[2].Verdict.Status)
	assert.Equal(t, domain.StatusPass, findings[3].Verdict.Status)
}

func TestFocusVisible(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<a href="/a" style="outline: none">a</a>
		<a href="/b" style="outline: 0; box-shadow: 0 0 0 2px blue">b</a>
		<button style="outline: 2px solid #eeeeee">c</button>
	</body></html>`)
	findings := scanFocusVisible(context.Background(), d)

	require.Len(t, findings, 3)
	assert.Equal(t, domain.StatusRecommendFix, findings[0].Verdict.Status)
	assert.Equal(t, "A", findings[0].Element.TagName)
	assert.Equal(t, domain.StatusNeedsReview, findings[1].Verdict.Status)
	assert.Contains(t, findings[1].Verdict.Rules, "Rule 2.1.2 (Focus Indicator Contrast)")
	assert.Equal(t, selectorDocument, findings[2].Element.Selector)
}

func TestFocusVisibleLonghands(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><head><style>.quiet { outline-style: none }</style></head><body>
		<a href="/a" style="outline-style: none">a</a>
		<a href="/b" style="outline-width: 0">b</a>
		<a href="/c" style="outline-width: 2px">c</a>
		<button class="quiet">d</button>
		<button>e</button>
	</body></html>`)
	findings := scanFocusVisible(context.Background(), d)

	require.Len(t, findings, 4)
	for i, tag := range []string{"A", "A", "BUTTON"} {
		assert.Equal(t, tag, findings[i].Element.TagName)
		assert.Equal(t, domain.StatusRecommendFix, findings[i].Verdict.Status)
		assert.Contains(t, findings[i].Verdict.Rules, "Rule 2.1.2 (Focus Visibility)")
	}
	assert.Equal(t, selectorDocument, findings[3].Element.Selector)
}

func TestBypassIgnoresHiddenSkipLink(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<a href="#main" style="display: none">본문 바로가기</a>
		<nav><a href="/one">하나</a></nav>
		<main id="main">본문</main>
	</body></html>`)
	findings := scanBypass(context.Background(), d)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.StatusFail, findings[0].Verdict.Status)
	assert.Contains(t, findings[0].Verdict.Rules, "Rule 2.4.1 (Missing Skip Link)")
}

func TestTargetSize(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<button style="width: 16px; height: 16px">x</button>
		<button style="width: 48px; height: 48px">ok</button>
	</body></html>`)
	findings := scanTargetSize(context.Background(), d)

	require.Len(t, findings, 2)
	assert.Equal(t, domain.StatusNeedsReview, findings[0].Verdict.Status)
	assert.Equal(t, domain.StatusPass, findings[1].Verdict.Status)
}

func TestLinkPurpose(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<a href="/1">여기</a>
		<a href="/2" aria-describedby="d">more</a><p id="d">2024 보고서 내려받기</p>
		<a href="/3">https://example.com/3</a>
		<a href="/4"></a>
		<a href="/5">연간 보고서</a>
	</body></html>`)
	findings := scanLinkPurpose(context.Background(), d)

	require.Len(t, findings, 5)
	want := []domain.Status{
		domain.StatusInappropriate,
		domain.StatusNeedsReview,
		domain.StatusRecommendFix,
		domain.StatusFail,
		domain.StatusPass,
	}
	for i, status := range want {
		assert.Equal(t, status, findings[i].Verdict.Status, "link %d", i+1)
	}
	assert.Contains(t, findings[1].Context.SmartContext, "2024 보고서 내려받기")
}

func TestLanguage(t *testing.T) {
	t.Parallel()

	cases := map[string]domain.Status{
		`<html lang="ko"><body></body></html>`:        domain.StatusNeedsReview,
		`<html><body></body></html>`:                  domain.StatusFail,
		`<html lang=" "><body></body></html>`:         domain.StatusFail,
		`<html lang="korean_kr"><body></body></html>`: domain.StatusFail,
	}
	for markup, status := range cases {
		findings := scanLanguage(context.Background(), parse(t, markup))
		require.Len(t, findings, 1)
		assert.Equal(t, status, findings[0].Verdict.Status, markup)
		assert.Equal(t, "html", findings[0].Element.Selector)
	}
}

func TestDuplicateIDs(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body><div id="a"></div><p id="a"></p><span id="b"></span></body></html>`)
	findings := scanMarkup(context.Background(), d)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.StatusFail, findings[0].Verdict.Status)
	assert.Contains(t, findings[0].Verdict.Message, `"a"`)
	assert.Contains(t, findings[0].Verdict.Message, "2개")
}

func TestMetaRefresh(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><head><meta http-equiv="refresh" content="5; url=/next"></head><body></body></html>`)
	findings := scanTiming(context.Background(), d)

	require.Len(t, findings, 1)
	assert.Equal(t, domain.StatusFail, findings[0].Verdict.Status)
	assert.Contains(t, findings[0].Verdict.Rules, "Rule 2.2.1 (Meta Refresh)")
}

func TestLabels(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body>
		<label for="name">이름</label><input id="name">
		<input placeholder="이메일">
		<input title="전화번호">
		<label>주소 <input></label>
		<input type="hidden" name="token">
	</body></html>`)
	findings := scanLabels(context.Background(), d)

	require.Len(t, findings, 4)
	assert.Equal(t, domain.StatusPass, findings[0].Verdict.Status)
	assert.Equal(t, domain.StatusFail, findings[1].Verdict.Status)
	assert.Contains(t, findings[1].Verdict.Rules, "Rule 3.3.2 (Placeholder is not a label)")
	assert.Equal(t, domain.StatusRecommendFix, findings[2].Verdict.Status)
	assert.Equal(t, "Label Method: implicit wrapper label", findings[3].Context.SmartContext)
}

func TestGuidanceFallbacks(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body><p>plain page</p></body></html>`)
	for name, scan := range map[string]func(context.Context, *dom.Document) []domain.Finding{
		"motion":   scanMotion,
		"aria":     scanAria,
		"auth":     scanAuthentication,
		"flashing": scanFlashing,
		"timing":   scanTiming,
		"bypass":   scanBypass,
	} {
		findings := scan(context.Background(), d)
		require.Len(t, findings, 1, name)
		assert.NotEqual(t, domain.StatusPass, findings[0].Verdict.Status, name)
		assert.NotEmpty(t, findings[0].Verdict.Rules, name)
	}
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry(nil)
	require.NoError(t, RegisterAll(reg))

	entries := reg.Entries()
	require.Len(t, entries, 33)
	assert.Equal(t, "1.1.1", entries[0].ID)
	assert.Equal(t, "4.2.1", entries[len(entries)-1].ID)
	for _, e := range entries {
		assert.True(t, scanner.ValidID(e.ID), e.ID)
	}
}

func TestCheckersAreDeterministic(t *testing.T) {
	t.Parallel()

	markup := `<!DOCTYPE html><html lang="ko"><head><title>보고서</title></head><body>
		<a href="#main">본문 바로가기</a>
		<h1>연간 보고서</h1><h3>요약</h3>
		<div id="main"><img src="chart.png" alt="매출 그래프 이미지"><p style="color:#999">주석</p></div>
		<form><input required placeholder="이름"></form>
	</body></html>`

	reg := scanner.NewRegistry(nil)
	require.NoError(t, RegisterAll(reg))

	run := func() []domain.Finding {
		var out []domain.Finding
		for _, e := range reg.Entries() {
			fs, err := e.Checker.Scan(context.Background(), parse(t, markup))
			require.NoError(t, err, e.ID)
			out = append(out, fs...)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestScanHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := checker{id: "1.1.1", scan: scanNonText}.Scan(ctx, parse(t, `<img>`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeadingOutline(t *testing.T) {
	t.Parallel()

	d := parse(t, `<html><body><h1>보고서</h1><h3>세부</h3><div style="display:flex; flex-direction: row-reverse"><span>a</span></div></body></html>`)
	findings := scanReadingOrder(context.Background(), d)

	require.Len(t, findings, 3)
	assert.Equal(t, "DIV", findings[0].Element.TagName)
	assert.Equal(t, domain.StatusNeedsReview, findings[0].Verdict.Status)

	outline := findings[1]
	assert.Equal(t, "outline", outline.Element.Selector)
	assert.Equal(t, domain.StatusPass, outline.Verdict.Status)
	require.Len(t, outline.Context.Details["outline"], 2)

	skip := findings[2]
	assert.Equal(t, "H3", skip.Element.TagName)
	assert.Equal(t, domain.StatusRecommendFix, skip.Verdict.Status)
}
