package checks

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/domain"
	"AccessibilityScanner/internal/heuristics"
)

func scanErrorIdentification(ctx context.Context, d *dom.Document) []domain.Finding {
	out := each(ctx, d, "form", func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		form := d.Select(n)
		required := form.Find(`input[required], select[required], textarea[required], [aria-required="true"]`).Length()
		if required == 0 {
			return nil
		}
		invalid := form.Find(`[aria-invalid="true"]`).Nodes

		v := verdict(domain.StatusNeedsReview,
			fmt.Sprintf("[수동 검사 안내] 필수 입력 항목이 포함된 서식(form)입니다. (필수 항목 %d개). 고의로 값을 비우거나 틀리게 입력한 후 폼을 제출해보세요. 오류 원인이 텍스트로 명확히 안내되고, 초점이 오류 항목으로 이동하는지 수동으로 확인해야 합니다.", required),
			"Rule 3.3.1 (Form Error Identification - Manual Check)")
		if len(invalid) > 0 {
			described := true
			for _, in := range invalid {
				if !dom.HasAttr(in, "aria-describedby") && !dom.HasAttr(in, "aria-errormessage") {
					described = false
					break
				}
			}
			if described {
				v.Message = "오류 상태(aria-invalid)와 오류 메시지가 ARIA 속성으로 연결되어 있습니다. 실제로 폼을 제출했을 때 화면에 오류 텍스트가 잘 보이고 초점이 이동하는지 최종 확인하세요."
				v.Rules = append(v.Rules, "Rule 3.3.1 (Verify ARIA Error Connection)")
			} else {
				v.Status = domain.StatusFail
				v.Message = "aria-invalid='true'로 오류 상태가 렌더링된 항목이 있으나, 구체적인 오류 메시지(aria-errormessage 또는 aria-describedby)가 연결되지 않았습니다."
				v.Rules = append(v.Rules, "Rule 3.3.1 (Missing Error Message Connection)")
			}
		}
		f := finding(d, n, v)
		f.Context.SmartContext = fmt.Sprintf("Required inputs: %d, invalid currently: %d", required, len(invalid))
		return []domain.Finding{f}
	})
	if len(out) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNeedsReview,
			"서식(form) 요소는 없으나 입력 위젯이 있다면, 입력 오류 발생 시 그 원인과 정정 방법을 사용자에게 명확히 알려주는지 수동으로 검토하세요.",
			"Rule 3.3.1 (Manual Review)"))
		f.Context.SmartContext = "없음"
		out = append(out, f)
	}
	return out
}

const labelCandidates = `input:not([type="hidden"]):not([type="submit"]):not([type="reset"]):not([type="button"]):not([type="image"]), select, textarea, [role="textbox"], [role="combobox"], [role="slider"], [role="spinbutton"], [role="searchbox"]`

func scanLabels(ctx context.Context, d *dom.Document) []domain.Finding {
	return each(ctx, d, labelCandidates, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		v, method := labelVerdict(d, n)
		if method == "" {
			method = "None found"
		}
		f := finding(d, n, v)
		f.Context.SmartContext = "Label Method: " + method
		return []domain.Finding{f}
	})
}

func labelVerdict(d *dom.Document, n *html.Node) (domain.Verdict, string) {
	v := verdict(domain.StatusPass, "입력 서식에 적절한 레이블이 제공되었습니다.")
	method := ""

	switch {
	case strings.TrimSpace(dom.AttrOr(n, "aria-label", "")) != "":
		method = "aria-label"
	case dom.HasAttr(n, "aria-labelledby"):
		ref := dom.AttrOr(n, "aria-labelledby", "")
		if target := d.ElementByID(ref); target != nil && strings.TrimSpace(dom.TextContent(target)) != "" {
			method = "aria-labelledby"
		} else {
			v = verdict(domain.StatusFail,
				fmt.Sprintf("aria-labelledby 대상(id=\"%s\")이 없거나 내용이 비어있습니다.", ref),
				"Rule 3.3.2 (Invalid aria-labelledby)")
		}
	case dom.AttrOr(n, "id", "") != "":
		if label := labelFor(d, dom.AttrOr(n, "id", "")); label != nil {
			if strings.TrimSpace(dom.TextContent(label)) != "" {
				method = "label[for]"
			} else {
				v = verdict(domain.StatusFail,
					"<label> 요소가 연결되어 있으나 텍스트 내용이 비어있습니다.",
					"Rule 3.3.2 (Empty explicit label)")
			}
		}
	}

	if method == "" {
		if wrapper := dom.Closest(n, "label"); wrapper != nil {
			text := strings.Replace(dom.TextContent(wrapper), dom.AttrOr(n, "value", ""), "", 1)
			if strings.TrimSpace(text) != "" {
				method = "implicit wrapper label"
			}
		}
	}

	if method == "" && strings.TrimSpace(dom.AttrOr(n, "placeholder", "")) != "" {
		return verdict(domain.StatusFail,
			"레이블 없이 placeholder 속성만 제공되었습니다. placeholder는 힌트일 뿐 레이블을 대체할 수 없으므로 <label> 또는 title, aria-label을 추가하세요.",
			append(v.Rules, "Rule 3.3.2 (Placeholder is not a label)")...), "placeholder only"
	}

	if method == "" && strings.TrimSpace(dom.AttrOr(n, "title", "")) != "" {
		method = "title attribute"
		v.Status = domain.StatusRecommendFix
		v.Message = "title 속성으로 레이블을 제공했습니다. 시각적 label 태그나 aria-label 사용을 권장합니다."
		v.Rules = append(v.Rules, "Rule 3.3.2 (Title used as label)")
	}

	if method == "" && v.Status == domain.StatusPass {
		v = verdict(domain.StatusFail,
			"입력 서식에 레이블(<label>, title, aria-label 등)이 제공되지 않았습니다.",
			"Rule 3.3.2 (Missing Label)")
	}
	return v, method
}

func labelFor(d *dom.Document, id string) *html.Node {
	for _, l := range d.Find("label[for]").Nodes {
		if dom.AttrOr(l, "for", "") == id {
			return l
		}
	}
	return nil
}

func scanAuthentication(ctx context.Context, d *dom.Document) []domain.Finding {
	passwords := d.Find(`input[type="password"]`).Nodes
	if len(passwords) == 0 {
		f := pageFinding(selectorBody, "BODY", verdict(domain.StatusNotApplicable,
			"페이지 내에 비밀번호 입력란 등 전형적인 인증(로그인) 서식이 발견되지 않았습니다. 해당 지침이 적용되지 않을 가능성이 높습니다.",
			"Rule 3.3.3 (No Auth Detected)"))
		f.Context.SmartContext = "로그인 폼 탐색"
		return []domain.Finding{f}
	}

	return each(ctx, d, `input[type="password"]`, func(n *html.Node) []domain.Finding {
		if heuristics.IsHidden(d, n) {
			return nil
		}
		var issues []string
		if dom.AttrOr(n, "autocomplete", "") == "off" {
			issues = append(issues, "autocomplete 속성이 off로 제한되어 패스워드 매니저 사용을 방해할 수 있습니다.")
		}
		if strings.Contains(dom.AttrOr(n, "onpaste", ""), "return false") {
			issues = append(issues, "onpaste 방지로 인해 비밀번호 복사/붙여넣기가 차단되었습니다.")
		}
		if len(issues) > 0 {
			return []domain.Finding{finding(d, n, verdict(domain.StatusFail,
				strings.Join(issues, " ")+" 비밀번호를 기억하지 않아도 로그인할 수 있도록 보조 수단(비밀번호 관리자, 붙여넣기)을 허용해야 합니다.",
				"Rule 3.3.3 (Cognitive Test Barrier)"))}
		}
		return []domain.Finding{finding(d, n, verdict(domain.StatusNeedsReview,
			"[수동 검사 안내] 비밀번호 입력란이 감지되었습니다. 만약 이 페이지에 퍼즐 맞추기나 문자 입력 캡차(CAPTCHA) 등 추가적인 인지 테스트가 있다면, SNS 로그인이나 이메일 인증 링크 등 인지에 의존하지 않는 대체 수단이 함께 제공되는지 확인하세요.",
			"Rule 3.3.3 (Manual Auth Review)"))}
	})
}
