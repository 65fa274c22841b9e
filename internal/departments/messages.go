package departments

// Client-facing messages. Clients match on these strings, so the edit and
// delete texts stay in Vietnamese as the web app shows them.
const (
	msgEventNotFound      = "Event not found"
	msgDepartmentNotFound = "Department not found"
	msgInsufficient       = "Insufficient permissions"

	msgAddForbidden     = "Only HoOC or HoD can add member to department"
	msgMemberIDRequired = "memberId is required"
	msgMemberNotFound   = "EventMember not found!"
	msgMoveHoOC         = "Cannot move HooC into a department"
	msgHoDElsewhere     = "User is HoD of another department"
	msgAddFailed        = "Failed to add member to department"

	msgNotInDepartment = "Member is not in this department"
	msgRemoveHoOC      = "Cannot remove HooC from department"
	msgRemoveHoD       = "Unassign HoD before removing from department"
	msgMemberRemoved   = "Member removed from department"
	msgRemoveFailed    = "Failed to remove member from department"

	msgUserIDRequired  = "userId is required"
	msgAssignForbidden = "Only HooC can assign HoD"
	msgUserNotFound    = "User not found"
	msgAssignHoOC      = "Cannot assign HooC as HoD"
	msgHoDAssigned     = "HoD assigned successfully"
	msgAssignFailed    = "Failed to assign HoD"

	msgNewHoDRequired     = "newHoDId is required"
	msgChangeForbidden    = "Only HoOC can change department head"
	msgNewHoDNotFound     = "New HoD user not found"
	msgNewHoDNotMember    = "New HoD must be a member of this department"
	msgHoDChanged         = "Department head changed successfully"
	msgChangeFailedPrefix = "Failed to change department head: "

	msgEventNotFoundVI      = "Event không tồn tại"
	msgDepartmentNotFoundVI = "Department không tồn tại"
	msgEditForbidden        = "Chỉ HooC mới được sửa Department"
	msgNameTaken            = "Tên department đã tồn tại"
	msgNameBlank            = "Tên department không được để trống"
	msgEdited               = "Sửa department thành công"
	msgEditFailed           = "Sửa department thất bại"
	msgDeleteForbidden      = "Chỉ HooC mới được xoá Department"
	msgDeleted              = "Xoá department thành công"
	msgDeleteFailed         = "Xoá department thất bại"

	msgCreateForbidden = "Only HoOC can create department"
	msgNameRequired    = "name is required"
	msgNameExists      = "Department name already exists"
	msgCreated         = "Department created"
	msgCreateFailed    = "Failed to create department"

	msgNotParticipant = "You are not a participant of this event"
	msgListFailed     = "Failed to load departments"
	msgDetailFailed   = "Failed to get department detail"
	msgMembersFailed  = "Failed to load department members"
)
