package source

import (
	"testing"

	"github.com/jarcoal/httpmock"
)

// setupHTTPMock activates httpmock on the default transport for the test.
func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

const indexResponse = `{
  "success": true,
  "result": {
    "identifier": "14718",
    "title": "中華民國政府行政機關辦公日曆表",
    "distribution": [
      {
        "resourceID": "a",
        "resourceDescription": "113年中華民國政府行政機關辦公日曆表",
        "resourceFormat": "CSV",
        "resourceDownloadUrl": "https://www.dgpa.gov.tw/FileConversion?filename=dgpa/files/113.csv&name=113.csv",
        "resourceModified": "2023-06-20 10:00:00"
      },
      {
        "resourceID": "b",
        "resourceDescription": "113年中華民國政府行政機關辦公日曆表(Google專用)",
        "resourceFormat": "CSV",
        "resourceDownloadUrl": "https://www.dgpa.gov.tw/FileConversion?filename=dgpa/files/113g.csv",
        "resourceModified": "2023-06-20 10:00:00"
      },
      {
        "resourceID": "c",
        "resourceDescription": "114年中華民國政府行政機關辦公日曆表",
        "resourceFormat": "CSV",
        "resourceDownloadUrl": "https://www.dgpa.gov.tw/FileConversion?filename=dgpa/files/114.csv",
        "resourceModified": "2024-06-21 10:05:09"
      },
      {
        "resourceID": "d",
        "resourceDescription": "114年中華民國政府行政機關辦公日曆表(修正)",
        "resourceFormat": "CSV",
        "resourceDownloadUrl": "https://www.dgpa.gov.tw/FileConversion?filename=dgpa/files/114-rev.csv",
        "resourceModified": "2024-09-01 09:00:00"
      },
      {
        "resourceID": "e",
        "resourceDescription": "114年中華民國政府行政機關辦公日曆表",
        "resourceFormat": "ODS",
        "resourceDownloadUrl": "https://www.dgpa.gov.tw/FileConversion?filename=dgpa/files/114.ods"
      }
    ]
  }
}`

const portalPage = `<!doctype html>
<html><body>
<ul>
  <li class="resource-item">
    <a href="/FileConversion?filename=113.csv&amp;name=113年中華民國政府行政機關辦公日曆表.csv">
      <button><span>下載</span></button>
      <span>CSV</span>
      <span>113年中華民國政府行政機關辦公日曆表</span>
    </a>
  </li>
  <li class="resource-item">
    <a href="https://www.dgpa.gov.tw/FileConversion?filename=113g.csv">
      <span>113年中華民國政府行政機關辦公日曆表(Google專用)</span>
    </a>
  </li>
  <li class="resource-item">
    <a href="https://www.dgpa.gov.tw/FileConversion?filename=114.csv&amp;name=114年中華民國政府行政機關辦公日曆表.csv">
      <span>CSV</span>
    </a>
  </li>
  <li class="resource-item"><span>no link</span></li>
</ul>
</body></html>`
