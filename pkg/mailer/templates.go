package mailer

import "html/template"

var approvalRequestTmpl = template.Must(template.New("approval_request").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Visitor Approval Request</h2>
  <p><strong>Visitor:</strong> {{.Visitor.FullName}}</p>
  {{if .Visitor.CompanyName}}<p><strong>Company:</strong> {{.Visitor.CompanyName}}</p>{{end}}
  <p><strong>Purpose:</strong> {{.Visitor.PurposeOfVisit}}</p>
  <p><strong>Contact:</strong> {{.Visitor.Phone}}{{if .Visitor.Email}} | {{.Visitor.Email}}{{end}}</p>
  <div style="margin: 20px 0;">
    <a href="{{.ApproveURL}}" style="background: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">APPROVE</a>
    <a href="{{.RejectURL}}" style="background: #f44336; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; margin-left: 10px;">REJECT</a>
  </div>
  <p style="color: #888; font-size: 12px;">This is an automated message from the Visitor Management System.</p>
</div>`))

var approvedTmpl = template.Must(template.New("approved").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #4CAF50;">Your Visit Has Been Approved</h2>
  <p>Hello {{.Visitor.FullName}},</p>
  <p><strong>{{.Visitor.HostEmployeeName}}</strong> has approved your visit request.</p>
  <p><strong>Badge ID:</strong> {{.Visitor.BadgeID}}</p>
  {{if .Visitor.ApprovalRemarks}}<p><strong>Remarks:</strong> {{.Visitor.ApprovalRemarks}}</p>{{end}}
  <p>Show this QR code at the security desk for check-in:</p>
  <img src="{{.QRCode}}" alt="Admission QR" style="width: 200px; height: 200px;"/>
  <p style="color: #888; font-size: 12px;">This is an automated message from the Visitor Management System.</p>
</div>`))

var rejectedTmpl = template.Must(template.New("rejected").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #f44336;">Visit Request Declined</h2>
  <p>Hello {{.Visitor.FullName}},</p>
  <p>Unfortunately your visit request could not be accommodated.</p>
  <p><strong>Reason:</strong> {{.Reason}}</p>
  <p style="color: #888; font-size: 12px;">This is an automated message from the Visitor Management System.</p>
</div>`))

var preApprovedTmpl = template.Must(template.New("pre_approved").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2196F3;">Pre-Approved Visit - Quick Access Pass</h2>
  <p>Hello {{.Visitor.FullName}},</p>
  <p><strong>{{.Visitor.HostEmployeeName}}</strong> has pre-approved your visit. Use quick check-in during your scheduled window.</p>
  <p><strong>Badge ID:</strong> {{.Visitor.BadgeID}}</p>
  {{if .WindowStart}}<p><strong>Arrival window:</strong> {{.WindowStart}} &ndash; {{.WindowEnd}}</p>{{end}}
  <p>Show this QR code at the security desk:</p>
  <img src="{{.QRCode}}" alt="Quick Access QR" style="width: 200px; height: 200px;"/>
  <p style="color: #888; font-size: 12px;">This is an automated message from the Visitor Management System.</p>
</div>`))
