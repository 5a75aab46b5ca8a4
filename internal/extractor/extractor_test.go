package extractor

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tenderkg/internal/domain"
)

const detailPage = `<html><head><title>標案查詢</title><script>var x = "機關名稱";</script></head>
<body>
<table>
  <tr><td>標案案號</td><td>A-113-001</td></tr>
  <tr><td>標案名稱</td><td id="tenderNameText">  辦公設備
      採購案 </td></tr>
  <tr><th>機關名稱：</th><td>某機關</td></tr>
  <tr><td>預算金額</td><td>NT$1,200,000</td></tr>
  <tr><td>決標金額</td><td>NT$1,150,000</td></tr>
  <tr><td>開標時間</td><td>113/05/01 10:00</td></tr>
  <tr><td>標的分類</td><td>財物類</td></tr>
  <tr><td>聯絡人</td><td>王先生</td></tr>
</table>
</body></html>`

func TestExtractDetailPage(t *testing.T) {
	fields, err := New().Extract(context.Background(), []byte(detailPage))
	require.NoError(t, err)

	assert.Equal(t, "辦公設備 採購案", domain.Value(fields.CaseName))
	assert.Equal(t, "A-113-001", domain.Value(fields.CaseNumber))
	assert.Equal(t, "某機關", domain.Value(fields.Organization))
	assert.Equal(t, "NT$1,200,000", domain.Value(fields.Budget))
	assert.Equal(t, "NT$1,150,000", domain.Value(fields.AwardAmount))
	assert.Equal(t, "113/05/01 10:00", domain.Value(fields.OpeningDate), "falls back to 開標時間")
	assert.Equal(t, "財物類", domain.Value(fields.Category))
	assert.Equal(t, "王先生", domain.Value(fields.Contact))
	assert.Nil(t, fields.Deadline)
}

func TestExtractFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		caseName *string
		opening  *string
	}{
		{
			name:     "h1 when name cell is missing",
			page:     `<h1>道路養護工程</h1><table><tr><td>開標日期</td><td>113/06/01</td><td>開標時間</td><td>09:00</td></tr></table>`,
			caseName: domain.StringPtr("道路養護工程"),
			opening:  domain.StringPtr("113/06/01"),
		},
		{
			name:     "empty name cell falls through to h1",
			page:     `<h1>備援標題</h1><table><tr><td>名稱</td><td id="tenderNameText"> </td></tr></table>`,
			caseName: domain.StringPtr("備援標題"),
		},
		{
			name: "no name anywhere",
			page: `<p>本頁無標案名稱</p><table><tr><td>機關名稱</td><td>某機關</td></tr></table>`,
		},
		{
			name:     "label without value cell",
			page:     `<h1>案名</h1><table><tr><td>開標日期</td></tr></table>`,
			caseName: domain.StringPtr("案名"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := New().Extract(context.Background(), []byte(tt.page))
			require.NoError(t, err)
			assert.Equal(t, tt.caseName, fields.CaseName)
			assert.Equal(t, tt.opening, fields.OpeningDate)
		})
	}
}

func TestExtractAllAbsentIsNotAnError(t *testing.T) {
	fields, err := New().Extract(context.Background(), []byte(`<html><body><p>系統維護中</p></body></html>`))
	require.NoError(t, err)
	assert.True(t, fields.AllAbsent())
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind ErrorKind
	}{
		{"empty", "", KindEmptyInput},
		{"whitespace", " \n\t  ", KindEmptyInput},
		{"tags only", "<html><body><table><tr><td> </td></tr></table></body></html>", KindUnparsableMarkup},
		{"script only", "<script>alert(1)</script>", KindUnparsableMarkup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Extract(context.Background(), []byte(tt.body))
			var ee *ExtractionError
			require.True(t, errors.As(err, &ee), "got %v", err)
			assert.Equal(t, tt.kind, ee.Kind)
		})
	}
}

func TestSections(t *testing.T) {
	page := `<html><body>
<h1>採購公告</h1>
<h2>招標資訊</h2>
<p>本案採公開招標。</p>
<div>ignored</div>
<p>投標廠商須具備資格。</p>
<h3>空白段落</h3>
<h2>履約期限</h2>
<p>決標後 60 日內完成。</p>
</body></html>`

	sections, err := New().Sections([]byte(page))
	require.NoError(t, err)

	assert.Equal(t, []domain.Section{
		{Heading: "招標資訊", Body: "本案採公開招標。\n投標廠商須具備資格。"},
		{Heading: "履約期限", Body: "決標後 60 日內完成。"},
	}, sections)
}

func TestTrimLabel(t *testing.T) {
	assert.Equal(t, "機關名稱", trimLabel("機關名稱："))
	assert.Equal(t, "機關名稱", trimLabel("機關名稱:"))
	assert.Equal(t, "機關名稱", trimLabel("機關名稱"))
}
