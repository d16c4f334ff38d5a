// Package prompt builds the SOAP chart prompts sent to the generation endpoint.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/f3rmion/mediscribe/internal/chart"
)

// Request is everything captured during a session that feeds a chart.
type Request struct {
	Patient    chart.PatientInfo
	Transcript string
	Memo       string
}

// HasContent reports whether the transcript or memo contains anything but whitespace.
func (r Request) HasContent() bool {
	return strings.TrimSpace(r.Transcript) != "" || strings.TrimSpace(r.Memo) != ""
}

// Prompt is a rendered system instruction plus user content block.
type Prompt struct {
	System string
	User   string
}

// Generator renders prompts from session data.
type Generator struct {
	system   string
	template *template.Template
}

// userData is the template input. Demographics are already defaulted.
type userData struct {
	Name       string
	Age        string
	Gender     string
	Transcript string
	Memo       string
}

// NewGenerator creates a generator with the default SOAP instruction and template.
func NewGenerator() *Generator {
	return &Generator{
		system:   SystemInstruction,
		template: template.Must(template.New("user").Parse(defaultUserTemplate)),
	}
}

// SetSystem replaces the system instruction.
func (g *Generator) SetSystem(system string) {
	g.system = system
}

// SetTemplate sets a custom user content template.
func (g *Generator) SetTemplate(tmpl string) error {
	t, err := template.New("user").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}
	g.template = t
	return nil
}

// Generate renders the prompt for a chart request.
func (g *Generator) Generate(req Request) (Prompt, error) {
	data := userData{
		Name:       req.Patient.NameOrUnknown(),
		Age:        req.Patient.AgeOrUnknown(),
		Gender:     req.Patient.GenderOrUnknown(),
		Transcript: req.Transcript,
		Memo:       req.Memo,
	}

	var buf bytes.Buffer
	if err := g.template.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("executing template: %w", err)
	}

	return Prompt{
		System: strings.TrimSpace(g.system),
		User:   strings.TrimSpace(buf.String()),
	}, nil
}

// SystemInstruction fixes the chart format: no markup, keyword style, the four
// SOAP headings in order, and speaker roles inferred from the conversation.
const SystemInstruction = `
당신은 전문적인 한의학 의료 서기입니다.
제공된 데이터를 바탕으로 표준화된 SOAP 형식의 진료 차트를 작성하세요.

[필독 지침: 출력 형식]
1. '#', '**', '-', '*' 등 어떠한 마크다운 기호도 절대 사용하지 마세요.
2. 모든 내용은 문장이 아닌 '간결한 단어 및 키워드' 위주로 작성하세요. (예: "만성적인 요통입니다" -> "CC: 만성 요통")
3. 제목은 다음 순서로 작성하고 뒤에 콜론(:)을 붙이세요:
   주관적 정보 (S)
   객관적 정보 (O)
   평가 및 한의변증 (A)
   계획 (P)

[필독 지침: 섹션별 내용]
주관적 정보 (S): 환자 호소 증상(CC), 발병 시기, 통증 양상 등을 핵심 단어 위주로 기술.
객관적 정보 (O): 이학적 검사 결과, 관찰 소견 등 핵심 키워드 위주. (예: "장요근 검사 필요", "SLR (-) 등")
평가 및 한의변증 (A):
   1) 한의학적 변증 (기혈수 변증, 장부변증 등)
   2) 양방 변명 (Western Diagnosis)
계획 (P):
   1) 치료 주기 및 기간: (예: 주 2-3회, 4주간)
   2) 치료처치종류: 침, 뜸, 부항, 약침, 추나 등 명시
   3) 처방종류:
      증상한약: 보험적용 한약 혹은 크라시에 제약회사 한국출시 제품 중심
      기능회복한약: 탕약 처방명 중심

4. 항목 사이에는 한 줄의 빈 줄을 두어 구분하세요.
5. 화자 구분(의사/환자)을 지능적으로 수행하여 내용을 분류하세요.
`

const defaultUserTemplate = `
환자 정보: 성함 {{ .Name }}, 나이 {{ .Age }}, 성별 {{ .Gender }}
[음성 기록]: {{ .Transcript }}
[의사 메모]: {{ .Memo }}
위 내용을 바탕으로 기호 없이 키워드 중심의 한방 SOAP 차트를 작성해줘.`
